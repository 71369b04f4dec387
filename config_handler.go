package main

import (
	"net/http"

	"go.uber.org/zap"

	"petshop/config"
	"petshop/respond"
)

// GetConfigHandler returns the shop settings an admin may edit.
func GetConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, config.GetConfig().Shop)
	}
}

// SaveConfigHandler validates and persists new shop settings.
func SaveConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var shop config.ShopConfig
		if err := respond.Decode(r, &shop); err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid settings")
			return
		}
		if err := shop.Validate(); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := config.SaveShopConfig(shop); err != nil {
			zap.L().Error("failed to save settings", zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
		zap.L().Info("shop settings saved",
			zap.Int64("freeShippingThresholdCents", shop.FreeShippingThresholdCents),
			zap.Int64("shippingFeeCents", shop.ShippingFeeCents))
		respond.JSON(w, http.StatusOK, map[string]any{"message": "Settings saved", "shop": shop})
	}
}
