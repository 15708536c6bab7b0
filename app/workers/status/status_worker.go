// Run regularly to check dependency health and emit entitlement gauges
package status

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"docuchat/m/v2/app/alerts"
	"docuchat/m/v2/app/config"
	"docuchat/m/v2/app/db/mongo"
	"docuchat/m/v2/app/db/redis"
	"docuchat/m/v2/app/workers"
)

var WORKER *workers.Worker

const probeTimeout = 10 * time.Second

type Checker struct {
	Store    mongo.Store
	Redis    redis.Client
	Notifier alerts.Notifier
}

func NewChecker(store mongo.Store, redisClient redis.Client, notifier alerts.Notifier) *Checker {
	return &Checker{
		Store:    store,
		Redis:    redisClient,
		Notifier: notifier,
	}
}

func (c *Checker) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	mongoAvailable := c.Store.Ping(ctx, nil) == nil
	redisAvailable := c.Redis.Ping(ctx).Err() == nil
	config.CONFIG.DataDogClient.Gauge("status_worker.mongo_db_available", boolToFloat64(mongoAvailable), nil, 1)
	config.CONFIG.DataDogClient.Gauge("status_worker.redis_available", boolToFloat64(redisAvailable), nil, 1)

	if !mongoAvailable {
		c.Notifier.Alert("MongoDB is down")
	}
	if !redisAvailable {
		c.Notifier.Alert("Redis is down")
	}

	if mongoAvailable {
		totalUsers, err := c.Store.GetUsersCount(ctx)
		if err != nil {
			log.Errorf("status worker: failed to count users: %s", err)
		} else {
			config.CONFIG.DataDogClient.Gauge("status_worker.total_users", float64(totalUsers), nil, 1)
		}
		proUsers, err := c.Store.GetProUsersCount(ctx)
		if err != nil {
			log.Errorf("status worker: failed to count pro users: %s", err)
		} else {
			config.CONFIG.DataDogClient.Gauge("status_worker.total_pro_users", float64(proUsers), nil, 1)
		}
	}
}

func boolToFloat64(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
