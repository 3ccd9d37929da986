package durable

type ReasonCode uint8

const (
	ReasonUnknown ReasonCode = iota + 1
	ReasonUpToDate
	ReasonNewNamespace
	ReasonPlaceholder
	ReasonScriptChanged
	ReasonClassChanged
	ReasonScriptAndClassChanged
)

func (c ReasonCode) String() string {
	switch c {
	case ReasonUnknown:
		return "unknown"
	case ReasonUpToDate:
		return "up_to_date"
	case ReasonNewNamespace:
		return "new_namespace"
	case ReasonPlaceholder:
		return "placeholder"
	case ReasonScriptChanged:
		return "script_changed"
	case ReasonClassChanged:
		return "class_changed"
	case ReasonScriptAndClassChanged:
		return "script_and_class_changed"
	default:
		return "unknown"
	}
}

func (c ReasonCode) IsValid() bool {
	switch c {
	case ReasonUnknown,
		ReasonUpToDate,
		ReasonNewNamespace,
		ReasonPlaceholder,
		ReasonScriptChanged,
		ReasonClassChanged,
		ReasonScriptAndClassChanged:
		return true
	default:
		return false
	}
}

func classifyReason(current NamespaceRecord, scriptName, className string) (Action, ReasonCode) {
	scriptMatches := current.Script == scriptName
	classMatches := current.Class == className
	switch {
	case scriptMatches && classMatches:
		return ActionNone, ReasonUpToDate
	case current.IsPlaceholder():
		return ActionUpdate, ReasonPlaceholder
	case !scriptMatches && !classMatches:
		return ActionUpdate, ReasonScriptAndClassChanged
	case !scriptMatches:
		return ActionUpdate, ReasonScriptChanged
	default:
		return ActionUpdate, ReasonClassChanged
	}
}
