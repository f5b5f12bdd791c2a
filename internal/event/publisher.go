package event

import (
	"encoding/json"

	"quiztake-service/internal/domain"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// Publisher forwards finalized session summaries to an AMQP topic exchange
// so downstream consumers (reporting, notifications) can react to completed
// attempts. It implements app.SubmitListener; publishing is best-effort and
// never fails the submit path.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      zerolog.Logger
}

func NewPublisher(amqpURL, exchange string, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

func (p *Publisher) SessionSubmitted(summary domain.SessionSummary) {
	body, err := json.Marshal(summary)
	if err != nil {
		p.log.Error().Err(err).Msg("marshal submit event")
		return
	}
	err = p.channel.Publish(p.exchange, "session.submitted", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("session", summary.SessionID).Msg("publish submit event failed")
	}
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
