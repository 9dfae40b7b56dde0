package mqtt

// TopicPrefix is the base for every topic the telemetry service owns.
const TopicPrefix = "graylogic/telemetry"

// Topics provides builders for the telemetry service's MQTT topics.
// Sensor state topics are configured per sensor and are not built here.
//
//	topic := mqtt.Topics{}.Command("publish")
//	// Returns: "graylogic/telemetry/command/publish"
type Topics struct{}

// Status is the retained online/offline topic, also used for the LWT.
//
// Example: graylogic/telemetry/status
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// Command returns the topic for one command verb.
//
// Example: graylogic/telemetry/command/publish
func (Topics) Command(verb string) string {
	return TopicPrefix + "/command/" + verb
}

// AllCommands matches every command topic.
//
// Pattern: graylogic/telemetry/command/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// Result returns the topic where the outcome of a command is published.
//
// Example: graylogic/telemetry/result/publish
func (Topics) Result(verb string) string {
	return TopicPrefix + "/result/" + verb
}

// Backlog is the retained topic carrying the backlog status.
//
// Example: graylogic/telemetry/backlog
func (Topics) Backlog() string {
	return TopicPrefix + "/backlog"
}
