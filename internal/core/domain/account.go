package domain

// Credentials are what a session authenticates with. A non-empty Token is
// tried first; Nick and Password are the fallback.
type Credentials struct {
	Nick     string
	Password string
	Token    string
}

// UserStats are the progression counters pushed with user_stats events.
type UserStats struct {
	XP              int   `json:"xp"`
	Level           int   `json:"level"`
	TimeDrawing     int64 `json:"time_drawing"`
	TimeCoding      int64 `json:"time_coding"`
	TimeMapping     int64 `json:"time_mapping"`
	CharactersTyped int64 `json:"characters_typed"`
	LinesOfCode     int64 `json:"lines_of_code"`
}

// AchievementInfo is the static description of an achievement.
type AchievementInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Story       string `json:"story"`
	Stat        string `json:"stat"`
	Value       int    `json:"value"`
	XP          int    `json:"xp"`
}

// Achievement is an unlocked achievement.
type Achievement struct {
	ID   string          `json:"id"`
	Date int64           `json:"date"`
	Info AchievementInfo `json:"info"`
}

// UserInfo is the account summary returned on login and token validation.
type UserInfo struct {
	Size         int64         `json:"size"`
	EarlyAccess  bool          `json:"early_access"`
	MaxStorage   int64         `json:"max_storage"`
	Description  string        `json:"description"`
	Stats        UserStats     `json:"stats"`
	Achievements []Achievement `json:"achievements"`
}

// AccountFlags carries the account validation flag.
type AccountFlags struct {
	Validated bool `json:"validated"`
}
