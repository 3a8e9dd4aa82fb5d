package domain

// Block is one element of the engine's raw output graph
type Block struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Text        string   `json:"text,omitempty"`
	Page        int      `json:"page,omitempty"`
	RowIndex    int      `json:"row_index,omitempty"`
	ColumnIndex int      `json:"column_index,omitempty"`
	Children    []string `json:"children,omitempty"`

	// SelectionStatus is SELECTED or NOT_SELECTED on selection elements
	SelectionStatus string `json:"selection_status,omitempty"`
}

// Table is a sequence of rows of trimmed cell text. Rows may be ragged.
type Table [][]string

// NormalizedResult is the stable internal representation of an analyzed document
type NormalizedResult struct {
	Tables []Table  `json:"tables"`
	Lines  []string `json:"lines"`
}

// Clone returns a deep copy of the result
func (r NormalizedResult) Clone() NormalizedResult {
	out := NormalizedResult{
		Tables: make([]Table, len(r.Tables)),
		Lines:  append([]string{}, r.Lines...),
	}
	for i, table := range r.Tables {
		rows := make(Table, len(table))
		for j, row := range table {
			rows[j] = append([]string{}, row...)
		}
		out.Tables[i] = rows
	}
	return out
}

// Outcome is the payload returned to callers of the coordinator
type Outcome struct {
	Result    NormalizedResult `json:"result"`
	PageCount int              `json:"page_count"`
}

// SubmitOptions configures an engine submission
type SubmitOptions struct {
	FeatureTypes []string
}

// ResultPage is one continuation-linked chunk of engine output
type ResultPage struct {
	Blocks    []Block
	NextToken string
}

// StatusPage is the engine's answer to a status query. Page holds the first
// chunk of output once Status is SUCCEEDED.
type StatusPage struct {
	Status        EngineStatus
	StatusMessage string
	PageCount     int
	Page          ResultPage
}
