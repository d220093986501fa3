package sink

import "github.com/hotgluexyz/target-sendgrid/internal/domain"

// Partition splits contacts by subscription intent, keeping input order
// within each group. The routing status is cleared on the way out; it is
// not part of the remote schema.
func Partition(contacts []domain.Contact) (unsubscribe, subscribed []domain.Contact) {
	for _, c := range contacts {
		unsub := c.Unsubscribes()
		c.SubscribeStatus = ""
		if unsub {
			unsubscribe = append(unsubscribe, c)
		} else {
			subscribed = append(subscribed, c)
		}
	}
	return unsubscribe, subscribed
}

// SubmissionOrder is the upsert payload order: unsubscribes first.
func SubmissionOrder(unsubscribe, subscribed []domain.Contact) []domain.Contact {
	out := make([]domain.Contact, 0, len(unsubscribe)+len(subscribed))
	out = append(out, unsubscribe...)
	return append(out, subscribed...)
}

// suppressionEmails collects the non-empty addresses of the unsubscribe
// partition.
func suppressionEmails(unsubscribe []domain.Contact) []string {
	emails := make([]string, 0, len(unsubscribe))
	for _, c := range unsubscribe {
		if e := c.EmailAddress(); e != "" {
			emails = append(emails, e)
		}
	}
	return emails
}
