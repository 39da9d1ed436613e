package pricing

import "github.com/wyfcoding/bsm/xerrors"

var (
	// ErrInvalidOptionType 期权方向不属于 {Call, Put}。
	ErrInvalidOptionType = xerrors.New(xerrors.ErrInvalidArg, xerrors.CodeInvalidOptionType, "invalid option type", "supported types: call, put", nil)
	// ErrDomain 参数超出模型定义域：S、K、T、σ 必须为有限正数，r 必须有限。
	ErrDomain = xerrors.New(xerrors.ErrOutOfDomain, xerrors.CodeDomain, "parameter out of domain", "spot, strike, time and volatility must be finite and positive", nil)
)

func domainError(field, rule string, value float64) *xerrors.Error {
	return xerrors.New(xerrors.ErrOutOfDomain, xerrors.CodeDomain, "parameter out of domain", "", nil).
		WithDetail("%s must be %s, got %v", field, rule, value).
		WithContext("field", field).
		WithContext("value", value)
}
