package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newVerifyCmd(env *runtimeEnv) *cobra.Command {
	var (
		platform    string
		payloadPath string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify one purchase payload and print the normalized result",
		Long: `Verify one purchase payload against the store and print the normalized
result as JSON, with is_active and is_expired evaluated at the current
time. Nothing is written to the database.

Use --payload - to read the payload from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(payloadPath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			manager := newIAPManager(ctx, env.cfg, nil, env.logger)
			result := manager.Verify(ctx, platform, payload)

			now := time.Now()
			out := result.ToMap()
			out["is_active"] = result.IsActive(now)
			out["is_expired"] = result.IsExpired(now)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("purchase is not valid: %s", result.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "ios, apple, android or google (required)")
	cmd.Flags().StringVar(&payloadPath, "payload", "", "path to a JSON payload file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}

func readPayload(path string, stdin io.Reader) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("payload must be a JSON object")
	}
	return payload, nil
}
