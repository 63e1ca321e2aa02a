package server

// Shoe is a catalog entry served by the backend
type Shoe struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Tag      string  `json:"tag,omitempty"`
	Category string  `json:"category,omitempty"`
}

func defaultCatalog() []Shoe {
	return []Shoe{
		{ID: 1, Name: "Trail Runner", Price: 89.99, Image: "/images/trail-runner.webp", Tag: "new", Category: "running"},
		{ID: 2, Name: "Court Classic", Price: 74.5, Image: "/images/court-classic.webp", Category: "lifestyle"},
		{ID: 3, Name: "Summit Boot", Price: 129, Image: "/images/summit-boot.webp", Tag: "sale", Category: "hiking"},
	}
}
