package xerrors

// 定价引擎与网格计算使用的业务码。
const (
	CodeInvalidOptionType = 400004
	CodeInvalidMetric     = 400005
	CodeInvalidAxis       = 400101
	CodeAxisTooLarge      = 400102
	CodeInvalidRequest    = 400201
	CodeDomain            = 422001
	CodeRateLimited       = 429001
	CodeCacheFailure      = 500101
)
