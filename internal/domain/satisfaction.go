package domain

// SatisfactionRating is the five-point closure survey value.
type SatisfactionRating string

const (
	SatisfactionVerySatisfied    SatisfactionRating = "very_satisfied"
	SatisfactionSatisfied        SatisfactionRating = "satisfied"
	SatisfactionNeutral          SatisfactionRating = "neutral"
	SatisfactionDissatisfied     SatisfactionRating = "dissatisfied"
	SatisfactionVeryDissatisfied SatisfactionRating = "very_dissatisfied"
)

// ratingScores maps each rating to its 1..5 score used for averages.
var ratingScores = map[SatisfactionRating]int{
	SatisfactionVerySatisfied:    5,
	SatisfactionSatisfied:        4,
	SatisfactionNeutral:          3,
	SatisfactionDissatisfied:     2,
	SatisfactionVeryDissatisfied: 1,
}

// Valid reports whether the rating is one of the five survey values.
func (r SatisfactionRating) Valid() bool {
	_, ok := ratingScores[r]
	return ok
}

// Score returns the 1..5 numeric value, or 0 for unset/invalid ratings.
func (r SatisfactionRating) Score() int {
	return ratingScores[r]
}

// SatisfactionStats aggregates closure survey results.
type SatisfactionStats struct {
	Total            int     `json:"total"`
	VerySatisfied    int     `json:"very_satisfied"`
	Satisfied        int     `json:"satisfied"`
	Neutral          int     `json:"neutral"`
	Dissatisfied     int     `json:"dissatisfied"`
	VeryDissatisfied int     `json:"very_dissatisfied"`
	Average          float64 `json:"average"`
}

// MonthlyStats summarizes ticket activity for one calendar month.
type MonthlyStats struct {
	TotalCreated               int               `json:"total_created"`
	TotalClosed                int               `json:"total_closed"`
	AverageResponseTimeMinutes int               `json:"average_response_time_minutes"`
	Satisfaction               SatisfactionStats `json:"satisfaction"`
}
