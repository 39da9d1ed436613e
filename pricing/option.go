package pricing

import (
	"strings"

	"github.com/wyfcoding/bsm/xerrors"
)

// OptionType 期权方向。零值不是合法方向，未初始化的值在求值时会被拒绝。
type OptionType uint8

const (
	// Call 看涨期权。
	Call OptionType = iota + 1
	// Put 看跌期权。
	Put
)

// ParseOptionType 解析外部输入的期权方向，大小写不敏感，支持 call/put/c/p。
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	default:
		return 0, invalidOptionType(s)
	}
}

// Valid 报告 t 是否为 Call 或 Put。
func (t OptionType) Valid() bool {
	return t == Call || t == Put
}

func (t OptionType) String() string {
	switch t {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return "invalid"
	}
}

// MarshalText 实现 encoding.TextMarshaler，JSON 中以 "call"/"put" 表示。
func (t OptionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, invalidOptionType(t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler。
func (t *OptionType) UnmarshalText(text []byte) error {
	v, err := ParseOptionType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func invalidOptionType(v any) *xerrors.Error {
	return xerrors.New(xerrors.ErrInvalidArg, xerrors.CodeInvalidOptionType, "invalid option type", "supported types: call, put", nil).
		WithContext("option_type", v)
}
