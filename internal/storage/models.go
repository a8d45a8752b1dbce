package storage

type School struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	Address         string      `json:"address"`
	TotalReviews    int         `json:"total_reviews"`
	TotalProfessors int         `json:"total_professors"`
	Professors      []Professor `json:"professors"`
}

type Professor struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Subject      string `json:"subject"`
	SchoolID     int64  `json:"school_id"`
	TotalReviews int    `json:"total_reviews"`
}

type Note struct {
	ID          int64    `json:"id"`
	Subject     string   `json:"subject"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	FilesURL    []string `json:"files_url"`
	UserID      int64    `json:"user_id"`
	ProfessorID int64    `json:"professor_id"`
	CreatedAt   string   `json:"created_at"`
}

type Review struct {
	ID             int64    `json:"id"`
	Text           string   `json:"text"`
	Subject        string   `json:"subject"`
	Difficulty     int      `json:"difficulty"`
	Rating         int      `json:"rating"`
	WouldTakeAgain bool     `json:"would_take_again"`
	ProfessorID    int64    `json:"professor_id"`
	CreatedAt      string   `json:"created_at"`
	Tags           []string `json:"tags"`
}

// ReviewStats summarises a professor's reviews.
type ReviewStats struct {
	Count                 int
	AvgQuality            float64
	AvgDifficulty         float64
	WouldTakeAgainPercent float64
}

// Stats computes averages over reviews. An empty slice yields zero values.
func Stats(reviews []Review) ReviewStats {
	if len(reviews) == 0 {
		return ReviewStats{}
	}
	var quality, difficulty, again int
	for _, r := range reviews {
		quality += r.Rating
		difficulty += r.Difficulty
		if r.WouldTakeAgain {
			again++
		}
	}
	n := float64(len(reviews))
	return ReviewStats{
		Count:                 len(reviews),
		AvgQuality:            float64(quality) / n,
		AvgDifficulty:         float64(difficulty) / n,
		WouldTakeAgainPercent: float64(again) / n * 100,
	}
}
