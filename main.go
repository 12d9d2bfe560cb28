package main

import (
	"github.com/crowdgauge/crowdgauge/config"
	"github.com/crowdgauge/crowdgauge/models"
	"github.com/crowdgauge/crowdgauge/mqtt"
	"github.com/crowdgauge/crowdgauge/routes"
	"github.com/crowdgauge/crowdgauge/services"
	"github.com/crowdgauge/crowdgauge/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Site{}, &models.CounterState{}, &models.FootfallEvent{})

	ingest := services.NewIngestService(db)
	r := routes.SetupRouter(db, ingest)

	// Optional MQTT bridge: sensors publishing pulses to a broker feed the
	// same ingest path as the HTTP endpoint.
	if cfg.MQTTBroker != "" {
		sub, err := mqtt.NewSubscriber(cfg.MQTTBroker, cfg.MQTTTopic, cfg.MQTTClientID, ingest)
		if err != nil {
			utils.Sugar.Fatalf("mqtt bridge failed to start: %v", err)
		}
		defer sub.Close()
		utils.Sugar.Infof("MQTT bridge subscribed to %s on %s", cfg.MQTTTopic, cfg.MQTTBroker)
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
