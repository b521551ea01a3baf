package dto

type CartItem struct {
	TrackPriceID string `json:"track_price_id"`
	Quantity     int32  `json:"quantity"`
}

type CartCheckoutRequest struct {
	Items []*CartItem `json:"items"`
	// billing email for guest checkouts; ignored when a session user exists
	Email string `json:"email,omitempty"`
}

type TrackCheckoutRequest struct {
	TrackPriceID string `json:"track_price_id"`
	Email        string `json:"email,omitempty"`
}

type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CheckoutStatusResponse is polled by the storefront after the processor
// redirects back, before the webhook may have landed.
type CheckoutStatusResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	OrderNumber string `json:"order_number,omitempty"`
}

type TrackPriceRequest struct {
	LicenseType   string `json:"license_type"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	StripePriceID string `json:"stripe_price_id,omitempty"`
}

type TrackCreateRequest struct {
	Name        string               `json:"name"`
	Artist      string               `json:"artist"`
	Description string               `json:"description"`
	Duration    int32                `json:"duration"`
	AudioURL    string               `json:"audio_url"`
	CoverURL    string               `json:"cover_url"`
	Status      string               `json:"status"`
	Prices      []*TrackPriceRequest `json:"prices"`
}

type TrackUpdateRequest struct {
	Name        *string              `json:"name,omitempty"`
	Artist      *string              `json:"artist,omitempty"`
	Description *string              `json:"description,omitempty"`
	Duration    *int32               `json:"duration,omitempty"`
	AudioURL    *string              `json:"audio_url,omitempty"`
	CoverURL    *string              `json:"cover_url,omitempty"`
	Status      *string              `json:"status,omitempty"`
	Prices      []*TrackPriceRequest `json:"prices,omitempty"`
}

type OrderNotesRequest struct {
	Notes string `json:"notes"`
}

type DownloadResponse struct {
	DownloadURL string `json:"download_url"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}
