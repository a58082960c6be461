package repositories

import "fmt"

func subscriptionDDL(d Dialect, table, users string) []string {
	switch d {
	case DialectMySQL:
		return []string{fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    user_id BIGINT UNSIGNED NOT NULL,
    platform ENUM('ios','android') NOT NULL,
    product_id VARCHAR(255) NOT NULL,
    transaction_id VARCHAR(255) NOT NULL,
    status ENUM('active','expired','cancelled') NOT NULL DEFAULT 'active',
    expires_at TIMESTAMP NULL DEFAULT NULL,
    raw_data JSON NULL,
    created_at TIMESTAMP NULL DEFAULT NULL,
    updated_at TIMESTAMP NULL DEFAULT NULL,
    PRIMARY KEY (id),
    UNIQUE KEY %[1]s_transaction_id_unique (transaction_id),
    KEY %[1]s_platform_index (platform),
    KEY %[1]s_product_id_index (product_id),
    KEY %[1]s_status_index (status),
    KEY %[1]s_expires_at_index (expires_at),
    KEY %[1]s_user_platform_product_index (user_id, platform, product_id),
    CONSTRAINT %[1]s_user_id_foreign FOREIGN KEY (user_id) REFERENCES %[2]s (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`, table, users)}

	case DialectPostgres:
		return []string{
			fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES %[2]s (id) ON DELETE CASCADE,
    platform VARCHAR(16) NOT NULL CHECK (platform IN ('ios','android')),
    product_id VARCHAR(255) NOT NULL,
    transaction_id VARCHAR(255) NOT NULL UNIQUE,
    status VARCHAR(16) NOT NULL DEFAULT 'active' CHECK (status IN ('active','expired','cancelled')),
    expires_at TIMESTAMPTZ NULL,
    raw_data JSONB NULL,
    created_at TIMESTAMPTZ NULL,
    updated_at TIMESTAMPTZ NULL
)`, table, users),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_platform_index ON %[1]s (platform)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_product_id_index ON %[1]s (product_id)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_status_index ON %[1]s (status)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_expires_at_index ON %[1]s (expires_at)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_user_platform_product_index ON %[1]s (user_id, platform, product_id)`, table),
		}

	default:
		return []string{
			fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES %[2]s (id) ON DELETE CASCADE,
    platform TEXT NOT NULL CHECK (platform IN ('ios','android')),
    product_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','expired','cancelled')),
    expires_at DATETIME NULL,
    raw_data TEXT NULL,
    created_at DATETIME NULL,
    updated_at DATETIME NULL
)`, table, users),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_platform_index ON %[1]s (platform)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_product_id_index ON %[1]s (product_id)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_status_index ON %[1]s (status)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_expires_at_index ON %[1]s (expires_at)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_user_platform_product_index ON %[1]s (user_id, platform, product_id)`, table),
		}
	}
}

// upsertSQL inserts a row or, when the transaction id already exists for the
// same user, overwrites its mutable columns. A row owned by a different user
// is left untouched.
func upsertSQL(d Dialect, table string) string {
	const insert = `
INSERT INTO %[1]s (user_id, platform, product_id, transaction_id, status, expires_at, raw_data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	switch d {
	case DialectMySQL:
		return fmt.Sprintf(insert+`ON DUPLICATE KEY UPDATE
    platform = IF(user_id = VALUES(user_id), VALUES(platform), platform),
    product_id = IF(user_id = VALUES(user_id), VALUES(product_id), product_id),
    status = IF(user_id = VALUES(user_id), VALUES(status), status),
    expires_at = IF(user_id = VALUES(user_id), VALUES(expires_at), expires_at),
    raw_data = IF(user_id = VALUES(user_id), VALUES(raw_data), raw_data),
    updated_at = IF(user_id = VALUES(user_id), VALUES(updated_at), updated_at)`, table)
	default:
		return d.rebind(fmt.Sprintf(insert+`ON CONFLICT (transaction_id) DO UPDATE SET
    platform = excluded.platform,
    product_id = excluded.product_id,
    status = excluded.status,
    expires_at = excluded.expires_at,
    raw_data = excluded.raw_data,
    updated_at = excluded.updated_at
WHERE %[1]s.user_id = excluded.user_id`, table))
	}
}
