// Package notify delivers composed messages to a chat channel.
//
// Telegram posts through the Bot API, Webhook posts Slack-compatible JSON,
// and Limited puts a token bucket in front of either so a flapping fleet
// cannot flood the channel. Every failure wraps ErrDelivery.
package notify
