package config

// CategoryGroup buckets categories by how urgently the user should act.
type CategoryGroup string

const (
	GroupAction CategoryGroup = "ACTION"
	GroupInfo   CategoryGroup = "INFO"
	GroupNoise  CategoryGroup = "NOISE"
	GroupOther  CategoryGroup = "OTHER"
)

// Taxonomy is the fixed category list the classifier works against.
// It is built once at configuration load and never mutated at runtime;
// adding a category (e.g. from an accepted proposal) is a configuration
// change followed by a retrain.
type Taxonomy struct {
	categories    []string
	descriptions  map[string]string
	groups        map[string]CategoryGroup
	priorityOrder []string
}

// DefaultTaxonomy returns the built-in 15-category taxonomy.
func DefaultTaxonomy() *Taxonomy {
	action := []string{
		"job_opportunity",
		"job_interview",
		"personal",
		"finance_alert",
		"security_auth",
		"events_calendar",
	}
	info := []string{
		"job_application_confirm",
		"travel",
		"shopping_orders",
		"finance_receipt",
		"newsletter_content",
		"education",
	}
	noise := []string{
		"social_notification",
		"marketing_promo",
		"account_service",
	}

	descriptions := map[string]string{
		"job_opportunity":         "Recruiter outreach, job recommendations, referral messages, 'we found your profile' emails",
		"job_interview":           "Interview scheduling, coding challenges, take-home assignments, offer letters, rejection notices — active hiring process",
		"personal":                "Direct emails from friends/family, genuine 1:1 personal conversations",
		"finance_alert":           "Bank alerts, fraud warnings, bill due reminders, tax documents, large transaction notices — needs review",
		"security_auth":           "Password resets, 2FA codes, login alerts ('new sign-in from...'), breach notifications, account lockout",
		"events_calendar":         "Event invitations, RSVPs, calendar notifications, meetup/webinar invites",
		"job_application_confirm": "'We received your application' confirmations, application portal links, status acknowledgments",
		"travel":                  "Flight/hotel bookings, itineraries, boarding passes, check-in reminders, trip notifications",
		"shopping_orders":         "Order confirmations, shipping/delivery tracking, return/refund confirmations",
		"finance_receipt":         "Payment receipts, subscription renewals, monthly statements — just records, no action needed",
		"newsletter_content":      "Substantive content newsletters (Substack, industry blogs, curated digests) the user subscribed to",
		"education":               "Online course updates (Coursera, Udemy), certifications, learning platform activity, academic communications",
		"social_notification":     "Social media notifications (LinkedIn, Instagram, Facebook, etc.), likes, comments, connection requests",
		"marketing_promo":         "Sales announcements, discount codes, product launches, 'we miss you' emails, cold promotional outreach",
		"account_service":         "Terms of service updates, privacy policy changes, product announcements, generic service emails, anything else",
	}

	// Handle-first ordering within each group
	priority := []string{
		"job_interview",
		"security_auth",
		"job_opportunity",
		"personal",
		"finance_alert",
		"events_calendar",
		"job_application_confirm",
		"travel",
		"shopping_orders",
		"finance_receipt",
		"newsletter_content",
		"education",
		"social_notification",
		"marketing_promo",
		"account_service",
	}

	groups := make(map[string]CategoryGroup, len(descriptions))
	categories := make([]string, 0, len(descriptions))
	for _, c := range action {
		groups[c] = GroupAction
		categories = append(categories, c)
	}
	for _, c := range info {
		groups[c] = GroupInfo
		categories = append(categories, c)
	}
	for _, c := range noise {
		groups[c] = GroupNoise
		categories = append(categories, c)
	}

	return &Taxonomy{
		categories:    categories,
		descriptions:  descriptions,
		groups:        groups,
		priorityOrder: priority,
	}
}

// Categories returns a copy of the category names in declaration order.
func (t *Taxonomy) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}

// Description returns the human-readable description for a category.
func (t *Taxonomy) Description(category string) string {
	return t.descriptions[category]
}

// Descriptions returns a copy of the category description map.
func (t *Taxonomy) Descriptions() map[string]string {
	out := make(map[string]string, len(t.descriptions))
	for k, v := range t.descriptions {
		out[k] = v
	}
	return out
}

// Group returns the group a category belongs to, or GroupOther for
// categories outside the taxonomy.
func (t *Taxonomy) Group(category string) CategoryGroup {
	if g, ok := t.groups[category]; ok {
		return g
	}
	return GroupOther
}

// GroupMembers returns the categories in a group, in declaration order.
func (t *Taxonomy) GroupMembers(group CategoryGroup) []string {
	var out []string
	for _, c := range t.categories {
		if t.groups[c] == group {
			out = append(out, c)
		}
	}
	return out
}

// PriorityOrder returns the categories ordered most important first.
func (t *Taxonomy) PriorityOrder() []string {
	out := make([]string, len(t.priorityOrder))
	copy(out, t.priorityOrder)
	return out
}

// Contains reports whether the category is part of the taxonomy.
func (t *Taxonomy) Contains(category string) bool {
	_, ok := t.groups[category]
	return ok
}
