package errs_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_NewLedger(t *testing.T) {
	t.Log("Given the need to map ledger errors to http responses.")
	{
		rejected := database.NewValidationError(database.ErrHashNotSolved, database.Block{Index: 1})

		trusted := errs.GetTrusted(errs.NewLedger(rejected))
		if trusted == nil || trusted.Status != http.StatusConflict {
			t.Fatalf("\t%s\tShould map a rejected block to a conflict: %+v", failed, trusted)
		}
		t.Logf("\t%s\tShould map a rejected block to a conflict.", success)

		if !errors.Is(trusted, database.ErrHashNotSolved) {
			t.Fatalf("\t%s\tShould keep the rejection reason.", failed)
		}
		t.Logf("\t%s\tShould keep the rejection reason.", success)

		if errs.IsTrusted(errs.NewLedger(errors.New("disk on fire"))) {
			t.Fatalf("\t%s\tShould not trust any other error.", failed)
		}
		t.Logf("\t%s\tShould not trust any other error.", success)
	}
}
