package mattermost

import (
	"context"

	"attendance/internal/service"
)

// Transport delivers cards and messages as bot DMs.
type Transport struct {
	client   *Client
	renderer *Renderer
}

func NewTransport(client *Client, renderer *Renderer) *Transport {
	return &Transport{client: client, renderer: renderer}
}

var _ service.Transport = (*Transport)(nil)

func (t *Transport) SendCard(ctx context.Context, chatID string, card service.Card) (service.Delivery, error) {
	props, err := t.renderer.Props(card, chatID)
	if err != nil {
		return service.Delivery{}, err
	}
	post, err := t.client.SendDM(ctx, chatID, &Post{Props: props})
	if err != nil {
		return service.Delivery{}, err
	}
	return service.Delivery{ChatRef: post.ChannelID, MessageRef: post.ID}, nil
}

func (t *Transport) EditCard(ctx context.Context, d service.Delivery, card service.Card) error {
	props, err := t.renderer.Props(card, "")
	if err != nil {
		return err
	}
	_, err = t.client.UpdatePost(ctx, d.MessageRef, &Post{ChannelID: d.ChatRef, Props: props})
	return err
}

func (t *Transport) SendText(ctx context.Context, chatID, text string) error {
	_, err := t.client.SendDM(ctx, chatID, &Post{Message: text})
	return err
}
