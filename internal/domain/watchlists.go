package domain

// Watchlist is a named, externally managed list of company identifiers.
type Watchlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExampleWatchlists are public watchlists offered as starting points in the frontend.
var ExampleWatchlists = []Watchlist{
	{ID: "33d6f577-9256-4a53-944f-09127e42fdc2", Name: "Top 100 UK"},
	{ID: "9baef470-8cf5-46fa-b30a-352bcb35cd94", Name: "Top 50 Europe"},
	{ID: "44118802-9104-4265-b97a-2e6d88d74893", Name: "Top 100 US"},
	{ID: "8453c26f-47c5-4e78-b5c8-acf245caccad", Name: "Top 40 Germany"},
	{ID: "9fb6ac2d-a552-4dbb-b62f-8657ef18bf29", Name: "Top 40 France"},
	{ID: "5b78837c-343d-4559-8f06-98668b09d1df", Name: "Dow 30"},
	{ID: "402acbcd-f1d8-4a55-997a-598819be0bbf", Name: "Nasdaq 100"},
	{ID: "814d0944-a2c1-44f6-8b42-a70c0795428e", Name: "Magnificent 7"},
}
