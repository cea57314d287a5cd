package api

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/moyoez/blendconv/types"
)

// fakeCloud plays the resource API, the blob store and the notification
// gateway. Conversion is instant unless hold is set: then the completion
// notice is sent once hold is closed.
type fakeCloud struct {
	srv *httptest.Server

	mu        sync.Mutex
	nextConn  int
	conns     map[string]*websocket.Conn
	blobs     map[string][]byte
	converted map[string]bool
	apiKeys   []string
	hold      chan struct{}
}

func newFakeCloud() *fakeCloud {
	gin.SetMode(gin.TestMode)
	f := &fakeCloud{
		conns:     map[string]*websocket.Conn{},
		blobs:     map[string][]byte{},
		converted: map[string]bool{},
	}
	upgrader := websocket.Upgrader{}
	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		f.mu.Lock()
		f.nextConn++
		id := fmt.Sprintf("c%d", f.nextConn)
		f.conns[id] = conn
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"connectionId":"`+id+`"}`))
		f.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.mu.Lock()
				delete(f.conns, id)
				f.mu.Unlock()
				return
			}
		}
	})
	v1 := router.Group("/v1")
	{
		v1.GET("/resource/:id", func(c *gin.Context) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.apiKeys = append(f.apiKeys, c.GetHeader("x-api-key"))
			id, fileType := c.Param("id"), c.Query("fileType")
			key := id + "." + fileType
			if c.Query("getPresignedUploadURL") != "true" && !f.converted[key] {
				c.JSON(http.StatusNotFound, gin.H{"error": "Object not found"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"presignedUrl": f.srv.URL + "/blob/" + key})
		})
		v1.POST("/resource", func(c *gin.Context) {
			var job types.ConversionJob
			if err := c.ShouldBindJSON(&job); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			conn, ok := f.conns[job.ConnectionID]
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown connectionId"})
				return
			}
			if _, ok := f.blobs[strings.TrimPrefix(job.S3Key, job.FromFileType+"/")]; !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source object"})
				return
			}
			f.converted[job.ModelID+"."+job.ToFileType] = true
			c.JSON(http.StatusOK, gin.H{"jobId": "j-" + job.ModelID})
			frame := fmt.Sprintf(`{"connectionId":%q,"jobStatus":"completed","modelId":%q,"jobId":"j-%s"}`, job.ConnectionID, job.ModelID, job.ModelID)
			if f.hold == nil {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
				return
			}
			go func(hold <-chan struct{}) {
				<-hold
				f.mu.Lock()
				defer f.mu.Unlock()
				_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
			}(f.hold)
		})
		v1.GET("/resources", func(c *gin.Context) {
			f.mu.Lock()
			defer f.mu.Unlock()
			page := types.ResourcePage{Models: []types.ModelMetadata{}}
			for key := range f.converted {
				id, fileType, _ := strings.Cut(key, ".")
				if fileType == c.Query("fileType") {
					page.Models = append(page.Models, types.ModelMetadata{ModelID: id, ToFileType: fileType, JobStatus: types.JobStatusCompleted})
				}
			}
			c.JSON(http.StatusOK, page)
		})
	}
	router.PUT("/blob/:key", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		f.mu.Lock()
		f.blobs[c.Param("key")] = body
		f.mu.Unlock()
		c.Status(http.StatusOK)
	})
	f.srv = httptest.NewServer(router)
	return f
}

func (f *fakeCloud) config() types.AppConfig {
	return types.AppConfig{
		APIURL:        f.srv.URL + "/v1",
		WebsocketURL:  "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws",
		APIKey:        "secret-key",
		SourceFormat:  "blend",
		TargetFormat:  "glb",
		SessionPolicy: types.SessionPolicyPerAttempt,
		ListLimit:     12,
	}
}
