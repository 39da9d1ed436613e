package idgen

import (
	"errors"
	"testing"
)

func TestGenerators_Unique(t *testing.T) {
	for _, typ := range []string{"snowflake", "sonyflake"} {
		g, err := NewGenerator(Config{Type: typ, MachineID: 7})
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		seen := make(map[int64]struct{}, 1000)
		for range 1000 {
			id := g.Generate()
			if id <= 0 {
				t.Fatalf("%s: non-positive id %d", typ, id)
			}
			if _, dup := seen[id]; dup {
				t.Fatalf("%s: duplicate id %d", typ, id)
			}
			seen[id] = struct{}{}
		}
	}
}

func TestNewGenerator_Errors(t *testing.T) {
	if _, err := NewGenerator(Config{Type: "uuid"}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := NewGenerator(Config{MachineID: 5000}); !errors.Is(err, ErrInvalidMachineID) {
		t.Errorf("expected ErrInvalidMachineID, got %v", err)
	}
	if _, err := NewGenerator(Config{Type: "sonyflake", StartTime: "yesterday"}); !errors.Is(err, ErrParseTime) {
		t.Errorf("expected ErrParseTime, got %v", err)
	}
}

func TestGenIDString(t *testing.T) {
	a, b := GenIDString(), GenIDString()
	if a == "" || a == b {
		t.Errorf("ids should be non-empty and distinct: %q %q", a, b)
	}
}
