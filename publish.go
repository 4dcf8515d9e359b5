package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// PublishDigest creates the digest card and, when a report file was
// written, attaches it. A configured Slack channel gets a short
// notification afterwards; notification failures never fail the
// publish.
func PublishDigest(cfg Config, tc *TrelloClient, title, desc, due, reportPath string) (string, error) {
	cardID, err := tc.CreateCard(CreateCardRequest{
		ListID:    cfg.DigestListID,
		Name:      title,
		Desc:      desc,
		MemberIDs: cfg.DigestMemberIDs,
		LabelIDs:  cfg.DigestLabelIDs,
		Due:       due,
	})
	if err != nil {
		return "", fmt.Errorf("publishing digest card: %w", err)
	}
	log.Printf("publish card created id=%s title=%q", cardID, title)

	if reportPath != "" {
		if err := tc.AttachFile(cardID, reportPath); err != nil {
			log.Printf("publish attach failed card=%s: %v", cardID, err)
		}
	}

	notifySlack(cfg, title, cardID)
	return cardID, nil
}

func notifySlack(cfg Config, title, cardID string) {
	if !cfg.SlackConfigured() {
		return
	}
	api := slack.New(cfg.SlackBotToken)
	msg := fmt.Sprintf("Daily digest published: %s (card %s)", title, cardID)
	if _, _, err := api.PostMessage(cfg.SlackChannelID, slack.MsgOptionText(msg, false)); err != nil {
		log.Printf("publish slack notify error: %v", err)
	}
}
