package wireproto

import (
	"errors"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/internal/riskerr"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func asRiskErr(err error, target **riskerr.Error) bool {
	return errors.As(err, target)
}
