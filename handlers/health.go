package handlers

import "bloomify/utils"

// Health reports the last-checked status of Mongo and Redis.
func Health() utils.HealthStatus {
	return utils.GetHealthStatus()
}
