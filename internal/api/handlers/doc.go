package handlers

// StatusResponse is the body of the health probes.
type StatusResponse struct {
	Status        string   `json:"status"                   example:"ready"`
	Reason        string   `json:"reason,omitempty"         example:"no application keys configured"`
	Environments  []string `json:"environments,omitempty"   example:"sandbox"`
	ActiveAccount string   `json:"active_account,omitempty" example:"seller42_sandbox"`
}
