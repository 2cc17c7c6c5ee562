package main

import (
	"encoding/json"
	"log"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"

	"github.com/Nex2i/dripiq-sub007/internal/config"
	"github.com/Nex2i/dripiq-sub007/internal/db"
	"github.com/Nex2i/dripiq-sub007/internal/repository"
	"github.com/Nex2i/dripiq-sub007/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	sender := &service.MessageSender{
		Outbound: &repository.OutboundMessageRepository{DB: conn},
	}

	// Connect to RabbitMQ
	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer amqpConn.Close()

	ch, err := amqpConn.Channel()
	if err != nil {
		log.Fatal("Failed to open a channel:", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"campaign_sends", // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		log.Fatal("Failed to declare queue:", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Fatal("Failed to register consumer:", err)
	}

	forever := make(chan bool)

	go func() {
		for d := range msgs {
			var job service.SendJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Println("Invalid job:", err)
				d.Ack(false)
				continue
			}

			err := sender.Process(job)
			if err != nil {
				log.Println("Failed to send message:", err)
				retryJob(ch, q.Name, d)
			}

			d.Ack(false)
		}
	}()

	log.Println("Worker running, waiting for messages...")
	<-forever
}

// retryJob republishes a failed delivery with an incremented retry counter,
// up to the publisher's attempt budget. A plain Nack-with-requeue would spin
// forever because the broker never touches our headers.
func retryJob(ch *amqp.Channel, queueName string, d amqp.Delivery) {
	maxAttempts := int32(3)
	if v, ok := d.Headers["x-max-attempts"].(int32); ok {
		maxAttempts = v
	}
	var retryCount int32
	if v, ok := d.Headers["x-retry-count"].(int32); ok {
		retryCount = v
	}

	retryCount++
	if retryCount >= maxAttempts {
		log.Printf("Job permanently failed after %d attempts: %s", maxAttempts, d.Body)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-retry-count"] = retryCount

	err := ch.Publish("", queueName, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Headers:      headers,
	})
	if err != nil {
		log.Println("Failed to requeue job:", err)
	}
}
