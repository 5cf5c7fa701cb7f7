package model

// Profile is the authenticated customer's account data.
type Profile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
}

// Credentials are used for login and signup.
type Credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the token issued on login or signup.
type AuthResponse struct {
	Token   string   `json:"token"`
	Profile *Profile `json:"user,omitempty"`
}

// Place is a geocoding result.
type Place struct {
	DisplayName string  `json:"displayName"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	City        string  `json:"city,omitempty"`
}
