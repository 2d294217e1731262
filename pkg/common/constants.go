package common

const (
	RedisStreamPriceTicks         = "alerts.price.ticks"
	RedisStreamWebNotifications   = "alerts.notifications.web"
	RedisStreamDeliveryDeadLetter = "alerts.delivery.deadletter"

	RedisStreamGroup    = "alert-engine-group"
	RedisStreamConsumer = "alert-engine-consumer"
)
