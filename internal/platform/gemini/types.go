package gemini

// ResponseSchema is the JSON structure the evaluation prompt instructs the
// model to return.
type ResponseSchema struct {
	Score           int      `json:"score"`
	Feedback        string   `json:"feedback"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	SuggestedAnswer string   `json:"suggested_answer"`
}

// promptData is the data passed to the evaluation prompt template.
type promptData struct {
	QuestionID string
	Answer     string
}
