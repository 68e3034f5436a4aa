package schema

import (
	"errors"
	"testing"
)

func TestParseOperation(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Operation
	}{
		{"plain", "sort", OpSort},
		{"message-alias", "cleanTabsSequence", OpClean},
		{"group-all", "group-all", OpConsolidate},
		{"legacy-group", "groupTabs", OpConsolidate},
		{"underscore", "close_blank", OpCloseBlank},
		{"padded", "  dedupe ", OpRemoveDuplicates},
		{"domain", "groupByDomain", OpGroupByDomain},
		{"ungroup", "ungroupTabs", OpUngroup},
	}
	for _, tc := range cases {
		got, err := ParseOperation(tc.in)
		if err != nil {
			t.Fatalf("case %q: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("case %q: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestParseOperationRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "explode", "sort tabs"} {
		if _, err := ParseOperation(in); !errors.Is(err, ErrUnknownOperation) {
			t.Fatalf("expected ErrUnknownOperation for %q, got %v", in, err)
		}
	}
}

func TestValidateRunRequest(t *testing.T) {
	if err := ValidateRunRequest(RunRequest{Operation: OpSort}); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if err := ValidateRunRequest(RunRequest{Operation: OpSort, WindowID: -2}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if err := ValidateRunRequest(RunRequest{Operation: "nope"}); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestResultFromError(t *testing.T) {
	if got := ResultFromError(nil); !got.Success || got.Error != "" {
		t.Fatalf("expected success result, got %+v", got)
	}
	got := ResultFromError(errors.New("boom"))
	if got.Success || got.Error != "boom" {
		t.Fatalf("expected failure result, got %+v", got)
	}
}

func TestNormalizeGroupColor(t *testing.T) {
	if c, ok := NormalizeGroupColor(" Gray "); !ok || c != ColorGrey {
		t.Fatalf("expected grey, got %q %v", c, ok)
	}
	if _, ok := NormalizeGroupColor("orange"); ok {
		t.Fatalf("expected orange to be rejected")
	}
	if len(GroupColors()) != 8 {
		t.Fatalf("expected 8 palette colours")
	}
}
