package handlers

import (
	"net/http"
	"strconv"
	"strings"
)

// int64Param reads a positive id from a pat path parameter. pat stores
// path parameters in the query with a leading colon.
func int64Param(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get(":"+name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
