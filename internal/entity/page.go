package entity

// PageState is the classification of the currently loaded page.
type PageState int

const (
	PageUnknown PageState = iota
	PageValid
	PageSoftError
	PageHardBlock
)

func (s PageState) String() string {
	switch s {
	case PageValid:
		return "VALID"
	case PageSoftError:
		return "SOFT_ERROR"
	case PageHardBlock:
		return "HARD_BLOCK"
	default:
		return "UNKNOWN"
	}
}

// PageResponse is what the browser reports after a navigation.
type PageResponse struct {
	Status   int
	FinalURL string
}

// TextHint is a visible-text fragment and the score it adds when present.
type TextHint struct {
	Text   string
	Weight int
}

// NavigationTarget describes a semantic destination independent of markup.
type NavigationTarget struct {
	Label        string
	URLHint      string
	TextHints    []TextHint
	OnclickHints []string
	MustNotMatch []string
}

// ElementRef addresses the Index-th match of Selector in the live document.
type ElementRef struct {
	Selector string `json:"selector"`
	Index    int    `json:"index"`
}

type TagKind string

const (
	TagLink   TagKind = "link"
	TagButton TagKind = "button"
	TagInput  TagKind = "input"
)

// ElementCandidate is a scored interactive element, valid for one navigation step.
type ElementCandidate struct {
	Ref     ElementRef
	Tag     TagKind
	Text    string
	Href    string
	Onclick string
	Score   int
}
