package handlers

import (
	"net/http"

	"leaddesk/internal/utils"
)

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Info describes the deployment for the widget's about panel.
func Info() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusOK, map[string]any{
			"company":     "DASA Hospitality",
			"description": "Customer support chat platform",
			"services": []string{
				"Hotel Revenue Management",
				"Marketing Solutions",
				"AI Chatbot Integration",
				"OTA Management",
			},
		})
	}
}
