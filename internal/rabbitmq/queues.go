package rabbitmq

// BroadcastExchange exchange очереди рассылок.
const BroadcastExchange = "broadcasts"

// QueueConfig очередь и ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// BroadcastQueues очереди, которые слушает обработчик рассылок.
func BroadcastQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "broadcasts.send", RoutingKey: "send"},
	}
}
