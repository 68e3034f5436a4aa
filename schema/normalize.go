package schema

import "strings"

var operationAliases = map[string]Operation{
	"clean":             OpClean,
	"cleantabssequence": OpClean,
	"clean-tabs":        OpClean,
	"consolidate":       OpConsolidate,
	"group-all":         OpConsolidate,
	"grouptabs":         OpConsolidate,
	"sort":              OpSort,
	"sorttabs":          OpSort,
	"remove-duplicates": OpRemoveDuplicates,
	"dedupe":            OpRemoveDuplicates,
	"removeduplicates":  OpRemoveDuplicates,
	"group-by-domain":   OpGroupByDomain,
	"groupbydomain":     OpGroupByDomain,
	"close-blank":       OpCloseBlank,
	"closeblanktabs":    OpCloseBlank,
	"ungroup":           OpUngroup,
	"ungrouptabs":       OpUngroup,
}

// ParseOperation resolves an operation name or one of its message aliases.
func ParseOperation(name string) (Operation, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	if key == "" {
		return "", ErrUnknownOperation
	}
	if op, ok := operationAliases[key]; ok {
		return op, nil
	}
	return "", ErrUnknownOperation
}

// ValidateRunRequest checks a request before it reaches the engine.
func ValidateRunRequest(req RunRequest) error {
	if req.WindowID < 0 {
		return ErrInvalidRequest
	}
	for _, op := range Operations() {
		if req.Operation == op {
			return nil
		}
	}
	return ErrUnknownOperation
}
