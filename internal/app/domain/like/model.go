package like

// Like is a directed edge from the liking user to the liked user. The ordered
// pair is the composite key; at most one edge may exist per pair.
type Like struct {
	LikerID int64 `db:"liker_id"`
	LikeeID int64 `db:"likee_id"`
}
