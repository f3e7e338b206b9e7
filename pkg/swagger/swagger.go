package swagger

import (
	"embed"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const documentName = "openapi.yaml"

//go:embed openapi.yaml
var documents embed.FS

// RegisterRoutes serves the OpenAPI document and a Swagger UI page under /swagger.
func RegisterRoutes(r gin.IRouter, title string) {
	page := []byte(uiPage(title))
	r.GET("/swagger/*path", func(c *gin.Context) {
		if !strings.HasSuffix(c.Param("path"), documentName) {
			c.Data(http.StatusOK, "text/html; charset=utf-8", page)
			return
		}
		doc, err := documents.ReadFile(documentName)
		if err != nil {
			c.String(http.StatusInternalServerError, "api document unavailable")
			return
		}
		c.Data(http.StatusOK, "application/yaml", doc)
	})
}

func uiPage(title string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>` + title + `</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '/swagger/` + documentName + `', dom_id: '#swagger-ui', deepLinking: true});
  </script>
</body>
</html>`
}
