package engine

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type probeResponse int

func (p probeResponse) write(w http.ResponseWriter, r *http.Request) { w.WriteHeader(int(p)) }

func ServeHealthProbe(db *sql.DB) Handler {
	return func(r *http.Request, ps httprouter.Params) Response {
		txn, err := db.BeginTx(r.Context(), nil)
		if err != nil {
			return probeResponse(500)
		}
		if err := txn.Rollback(); err != nil {
			return probeResponse(500)
		}
		return probeResponse(200)
	}
}

func CheckHealthProbe(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
