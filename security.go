package openapi

import (
	"strings"

	"github.com/nlstn/odata-openapi/internal/csdl"
)

// securitySchemes maps the Org.OData.Authorization.V1 annotations of the
// entity container onto OpenAPI securitySchemes and the top-level security
// requirements. Unrecognized authorization types are skipped with a
// diagnostic; the conversion continues without them.
func (c *converter) securitySchemes() (map[string]any, []any) {
	_, _, container, ok := c.doc.EntityContainer()
	if !ok {
		return nil, nil
	}

	schemes := map[string]any{}
	if raw, ok := c.doc.Term(container, csdl.AuthorizationAuthorizations); ok {
		list, _ := raw.([]any)
		for _, entry := range list {
			record, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name, _ := record["Name"].(string)
			scheme := c.authorizationScheme(record)
			if name == "" || scheme == nil {
				continue
			}
			schemes[name] = scheme
		}
	}

	var security []any
	if raw, ok := c.doc.Term(container, csdl.AuthorizationSecuritySchemes); ok {
		list, _ := raw.([]any)
		for _, entry := range list {
			record, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name, _ := record["Authorization"].(string)
			if name == "" {
				continue
			}
			scopes := []any{}
			if required, ok := record["RequiredScopes"].([]any); ok {
				scopes = required
			}
			security = append(security, map[string]any{name: scopes})
		}
	}
	return schemes, security
}

// authorizationScheme translates one Authorization record into an OpenAPI
// security scheme object, nil when the record's type is not recognized.
func (c *converter) authorizationScheme(record map[string]any) map[string]any {
	typeName, _ := record["$Type"].(string)
	kind := strings.TrimPrefix(c.doc.Normalize(typeName), "Org.OData.Authorization.V1.")

	str := func(key string) string {
		s, _ := record[key].(string)
		return s
	}
	scheme := map[string]any{}
	if description := str("Description"); description != "" {
		scheme["description"] = description
	}

	switch kind {
	case "Http":
		scheme["type"] = "http"
		scheme["scheme"] = strings.ToLower(str("Scheme"))
		if format := str("BearerFormat"); format != "" {
			scheme["bearerFormat"] = format
		}
	case "ApiKey":
		scheme["type"] = "apiKey"
		scheme["name"] = str("KeyName")
		scheme["in"] = strings.ToLower(str("Location"))
	case "OpenIDConnect":
		scheme["type"] = "openIdConnect"
		scheme["openIdConnectUrl"] = str("IssuerUrl")
	case "OAuth2ClientCredentials":
		scheme["type"] = "oauth2"
		scheme["flows"] = map[string]any{
			"clientCredentials": oauthFlow(record, "TokenUrl"),
		}
	case "OAuth2AuthCode":
		scheme["type"] = "oauth2"
		scheme["flows"] = map[string]any{
			"authorizationCode": oauthFlow(record, "AuthorizationUrl", "TokenUrl"),
		}
	case "OAuth2Implicit":
		scheme["type"] = "oauth2"
		scheme["flows"] = map[string]any{
			"implicit": oauthFlow(record, "AuthorizationUrl"),
		}
	case "OAuth2Password":
		scheme["type"] = "oauth2"
		scheme["flows"] = map[string]any{
			"password": oauthFlow(record, "TokenUrl"),
		}
	default:
		c.logger.Warn("Skipping unrecognized authorization type", "name", record["Name"], "type", typeName)
		return nil
	}
	return scheme
}

// oauthFlow builds one OAuth2 flow object with the given URL members and
// the record's refresh URL and scopes.
func oauthFlow(record map[string]any, urlKeys ...string) map[string]any {
	flow := map[string]any{}
	for _, key := range urlKeys {
		if u, ok := record[key].(string); ok {
			// OpenAPI member names start lowercase.
			flow[strings.ToLower(key[:1])+key[1:]] = u
		}
	}
	if refresh, ok := record["RefreshUrl"].(string); ok && refresh != "" {
		flow["refreshUrl"] = refresh
	}
	scopes := map[string]any{}
	if list, ok := record["Scopes"].([]any); ok {
		for _, entry := range list {
			if scope, ok := entry.(map[string]any); ok {
				name, _ := scope["Scope"].(string)
				description, _ := scope["Description"].(string)
				if name != "" {
					scopes[name] = description
				}
			}
		}
	}
	flow["scopes"] = scopes
	return flow
}
