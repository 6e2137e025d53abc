package cel

// FilterExpressionExamples are shown in command help and checked by tests.
var FilterExpressionExamples = map[string]string{
	"method":          `method == "POST"`,
	"path_prefix":     `path.startsWith("github/")`,
	"header_present":  `"x-github-event" in headers`,
	"header_value":    `"x-github-event" in headers && headers["x-github-event"] == "push"`,
	"query_param":     `"token" in query && query["token"] != ""`,
	"body_contains":   `body.contains("invoice.paid")`,
	"size":            `size_bytes > 1024`,
	"since":           `created_at > timestamp("2024-01-01T00:00:00Z")`,
	"combined":        `method in ["POST", "PUT"] && size_bytes > 0`,
	"remote_ip_match": `remote_ip.startsWith("10.")`,
}
