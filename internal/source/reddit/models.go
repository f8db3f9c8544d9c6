package reddit

// Listing is the envelope of a subreddit listing response.
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

type ListingData struct {
	After    string  `json:"after"`
	Children []Child `json:"children"`
}

type Child struct {
	Kind string `json:"kind"`
	Data Post   `json:"data"`
}

type Post struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Score      int     `json:"score"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}
