package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "hassbridge"

// Topics builds hassbridge MQTT topics under a common prefix.
//
//	topics := mqtt.Topics{Prefix: "hassbridge"}
//	topics.ServiceEvent("light", "turn_on")
//	// Returns: "hassbridge/event/call_service/light/turn_on"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: hassbridge/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// CallEvent returns the topic for events about one RPC method.
//
// Example: hassbridge/event/get_state
func (t Topics) CallEvent(method string) string {
	return t.prefix() + "/event/" + topicLevel(method)
}

// ServiceEvent returns the topic for call_service events of one service.
//
// Example: hassbridge/event/call_service/light/turn_on
func (t Topics) ServiceEvent(domain, service string) string {
	return t.prefix() + "/event/call_service/" + topicLevel(domain) + "/" + topicLevel(service)
}

// topicLevel makes s safe as a single topic level. Separators and wildcards
// are replaced so caller-supplied names cannot change the topic shape.
func topicLevel(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_", "\x00", "").Replace(s)
}
