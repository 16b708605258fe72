package models

// Table is a rectangular data table lifted out of a rendered page.
// Every row holds exactly len(Header) cells.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Evidence is what one topic page yields: cleaned prose and the data tables worth keeping.
type Evidence struct {
	Text   string  `json:"text"`
	Tables []Table `json:"tables"`
}

type Bundle struct {
	Topic    string   `json:"topic"`
	Lang     string   `json:"lang"`
	Evidence Evidence `json:"evidence"`
}

type Chunk struct {
	Index     int
	Content   string
	Embedding []float32
}
