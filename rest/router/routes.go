package router

import (
	"net/http"

	"rest-gateway/rest/router/domain"
)

// Routes são os endpoints de webhook usados pela camada de serviço.
var Routes = struct {
	ChannelWebhookCreate Route
	ChannelWebhooksGet   Route
	GuildWebhooksGet     Route
	WebhookGet           Route
	WebhookModify        Route
	WebhookDelete        Route
	WebhookMessageEdit   Route
	WebhookMessageDelete Route
}{
	ChannelWebhookCreate: domain.NewRoute(http.MethodPost, "/channels/{channel.id}/webhooks"),
	ChannelWebhooksGet:   domain.NewRoute(http.MethodGet, "/channels/{channel.id}/webhooks"),
	GuildWebhooksGet:     domain.NewRoute(http.MethodGet, "/guilds/{guild.id}/webhooks"),
	WebhookGet:           domain.NewRoute(http.MethodGet, "/webhooks/{webhook.id}"),
	WebhookModify:        domain.NewRoute(http.MethodPatch, "/webhooks/{webhook.id}"),
	WebhookDelete:        domain.NewRoute(http.MethodDelete, "/webhooks/{webhook.id}"),
	WebhookMessageEdit:   domain.NewRoute(http.MethodPatch, "/webhooks/{webhook.id}/{webhook.token}/messages/{message.id}"),
	WebhookMessageDelete: domain.NewRoute(http.MethodDelete, "/webhooks/{webhook.id}/{webhook.token}/messages/{message.id}"),
}
