package repository

type LeadFilter struct {
	Status string
	Source string
	Limit  int
	Offset int
	Sort   string // created_at, last_active, time_spent_seconds
	Order  string // asc|desc
}
