package api

import (
	"net/http"
	"strconv"
)

// maxBodyBytes bounds request bodies; a full default batch fits comfortably.
const maxBodyBytes = 8 << 20

// queryLimit reads the optional "limit" parameter. A missing or unparsable
// value yields 0, which the store replaces with its default.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
