package domain

type VoteChoice string

const (
	VoteYes VoteChoice = "yes"
	VoteNo  VoteChoice = "no"
)

func (c VoteChoice) Valid() bool {
	return c == VoteYes || c == VoteNo
}

type Proposal struct {
	ID           string
	PropertyID   string
	PropertyName string
	Title        string
	Description  string
	YesVotes     int
	NoVotes      int
}
