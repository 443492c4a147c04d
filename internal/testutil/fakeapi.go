// Package testutil provides an in-memory closures API for tests.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/pkg/workflows"
)

// Password is accepted for every seeded user.
const Password = "secret"

// Seeded users.
var (
	Operator       = gateway.User{ID: 1, Username: "operator", FirstName: "Ivan", LastName: "Petrov", Role: workflows.RoleRailwayOperator}
	OtherOperator  = gateway.User{ID: 2, Username: "operator2", FirstName: "Olga", LastName: "Sidorova", Role: workflows.RoleRailwayOperator}
	Administration = gateway.User{ID: 3, Username: "admin", FirstName: "Anna", LastName: "Smirnova", Role: workflows.RoleAdministration}
	TrafficPolice  = gateway.User{ID: 4, Username: "police", FirstName: "Petr", LastName: "Volkov", Role: workflows.RoleTrafficPolice}
)

// Seeded crossings.
var (
	CrossingC1 = gateway.Crossing{ID: 1, Name: "C1", Latitude: 55.7558, Longitude: 37.6173, Description: "Main line km 12"}
	CrossingC2 = gateway.Crossing{ID: 2, Name: "C2", Latitude: 59.9343, Longitude: 30.3351, Description: "Branch line km 3"}
)

// Call is one request seen by the fake.
type Call struct {
	Method string
	Path   string
}

type storedFile struct {
	contentType string
	data        []byte
}

// FakeAPI mimics the closures REST API, including its role checks and
// status transitions, backed by maps.
type FakeAPI struct {
	Server *httptest.Server

	mu         sync.Mutex
	users      map[string]gateway.User
	tokens     map[string]gateway.User
	crossings  []gateway.Crossing
	closures   map[int64]*gateway.Closure
	documents  map[int64][]gateway.Document
	files      map[string]storedFile
	activities []gateway.Activity
	calls      []Call
	failures   map[string]int
	nextID     int64
	now        func() time.Time
}

// NewFakeAPI starts the fake and closes it when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeAPI{
		users:     make(map[string]gateway.User),
		tokens:    make(map[string]gateway.User),
		crossings: []gateway.Crossing{CrossingC1, CrossingC2},
		closures:  make(map[int64]*gateway.Closure),
		documents: make(map[int64][]gateway.Document),
		files:     make(map[string]storedFile),
		failures:  make(map[string]int),
		nextID:    100,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
	for _, u := range []gateway.User{Operator, OtherOperator, Administration, TrafficPolice} {
		f.users[u.Username] = u
	}

	f.Server = httptest.NewServer(f.router())
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the API root to give to gateway.NewClient.
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

// TokenFor issues a token for a seeded user without going through login.
func (f *FakeAPI) TokenFor(user gateway.User) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "token-" + user.Username
	f.tokens[token] = user
	return token
}

// RevokeTokens makes every issued token invalid.
func (f *FakeAPI) RevokeTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]gateway.User)
}

// FailNext makes the next request to path answer with status.
func (f *FakeAPI) FailNext(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = status
}

// NextID is the id the next created record will get.
func (f *FakeAPI) NextID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextID + 1
}

// Calls returns the requests seen so far.
func (f *FakeAPI) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// ResetCalls forgets the recorded requests.
func (f *FakeAPI) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Closure returns a copy of the stored closure.
func (f *FakeAPI) Closure(id int64) (gateway.Closure, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.closures[id]
	if !ok {
		return gateway.Closure{}, false
	}
	return f.render(c), true
}

// SeedClosure stores a closure as-is and returns its id.
func (f *FakeAPI) SeedClosure(c gateway.Closure) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == 0 {
		f.nextID++
		c.ID = f.nextID
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = f.now()
		c.UpdatedAt = c.CreatedAt
	}
	stored := c
	f.closures[c.ID] = &stored
	return c.ID
}

// SeedDraft stores a valid draft closure on CrossingC1 created by creator.
func (f *FakeAPI) SeedDraft(creator gateway.User) int64 {
	start := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	return f.SeedClosure(gateway.Closure{
		RailwayCrossing: CrossingC1.ID,
		CreatedBy:       &creator,
		StartDate:       start,
		EndDate:         start.Add(10 * time.Hour),
		Reason:          "Track maintenance on the main line",
		Status:          workflows.StatusDraft,
		Comments:        []gateway.Comment{},
	})
}

// SeedDocument attaches a document to a closure.
func (f *FakeAPI) SeedDocument(closureID int64, title, docType string) gateway.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addDocument(closureID, title, docType, "seed.pdf", "application/pdf", []byte("%PDF-1.4"), Operator)
}

func (f *FakeAPI) router() *gin.Engine {
	r := gin.New()
	r.Use(f.record(), f.injectFailures())

	r.POST("/auth/token/login/", f.login)

	authed := r.Group("/", f.authenticate())
	authed.GET("/auth/users/me/", f.me)
	authed.GET("/crossings/", f.listCrossings)
	authed.GET("/activities/", f.listActivities)
	authed.GET("/export/yandex/", f.exportApproved)
	authed.GET("/closures/", f.listClosures)
	authed.POST("/closures/", f.createClosure)
	authed.GET("/closures/:id/", f.getClosure)
	authed.PUT("/closures/:id/", f.updateClosure)
	authed.DELETE("/closures/:id/", f.deleteClosure)
	authed.POST("/closures/:id/send_for_approval/", f.sendForApproval)
	authed.POST("/closures/:id/approve_administration/", f.approveAdministration)
	authed.POST("/closures/:id/approve_gibdd/", f.approveGibdd)
	authed.POST("/closures/:id/reject/", f.reject)
	authed.POST("/closures/:id/sign_closure/", f.sign)
	authed.GET("/closures/:id/documents/", f.listDocuments)
	authed.POST("/closures/:id/documents/", f.uploadDocument)
	authed.DELETE("/closures/:id/documents/:docId/", f.deleteDocument)
	authed.POST("/closures/:id/comments/", f.addComment)
	authed.GET("/media/documents/:name", f.download)
	return r
}

func (f *FakeAPI) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		f.mu.Lock()
		f.calls = append(f.calls, Call{Method: c.Request.Method, Path: c.Request.URL.Path})
		f.mu.Unlock()
		c.Next()
	}
}

func (f *FakeAPI) injectFailures() gin.HandlerFunc {
	return func(c *gin.Context) {
		f.mu.Lock()
		status, ok := f.failures[c.Request.URL.Path]
		delete(f.failures, c.Request.URL.Path)
		f.mu.Unlock()
		if ok {
			c.AbortWithStatusJSON(status, gin.H{"detail": http.StatusText(status)})
			return
		}
		c.Next()
	}
}

func (f *FakeAPI) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Token ")
		f.mu.Lock()
		user, ok := f.tokens[token]
		f.mu.Unlock()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
			return
		}
		c.Set("user", user)
		c.Next()
	}
}

func currentUser(c *gin.Context) gateway.User {
	return c.MustGet("user").(gateway.User)
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
}

func (f *FakeAPI) login(c *gin.Context) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = c.ShouldBindJSON(&in)

	f.mu.Lock()
	user, ok := f.users[in.Username]
	f.mu.Unlock()
	if !ok || in.Password != Password {
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Unable to log in with provided credentials."}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_token": f.TokenFor(user)})
}

func (f *FakeAPI) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (f *FakeAPI) listCrossings(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.JSON(http.StatusOK, f.crossings)
}

func (f *FakeAPI) listActivities(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]gateway.Activity(nil), f.activities...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (f *FakeAPI) exportApproved(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []gateway.MapExportItem{}
	for _, closure := range f.sortedClosures() {
		if closure.Status != workflows.StatusApproved {
			continue
		}
		crossing := f.crossing(closure.RailwayCrossing)
		items = append(items, gateway.MapExportItem{
			ID:        closure.ID,
			Name:      crossing.Name,
			Latitude:  crossing.Latitude,
			Longitude: crossing.Longitude,
			StartDate: closure.StartDate,
			EndDate:   closure.EndDate,
			Reason:    closure.Reason,
		})
	}
	c.JSON(http.StatusOK, items)
}

func (f *FakeAPI) listClosures(c *gin.Context) {
	status := workflows.Status(c.Query("status"))
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []gateway.Closure{}
	for _, closure := range f.sortedClosures() {
		if status != "" && closure.Status != status {
			continue
		}
		out = append(out, f.render(closure))
	}
	c.JSON(http.StatusOK, out)
}

type closureBody struct {
	RailwayCrossing int64     `json:"railway_crossing"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Reason          string    `json:"reason"`
}

func (b closureBody) problems() gin.H {
	out := gin.H{}
	if b.RailwayCrossing == 0 {
		out["railway_crossing"] = []string{"This field is required."}
	}
	if b.StartDate.IsZero() {
		out["start_date"] = []string{"This field is required."}
	}
	if b.EndDate.IsZero() {
		out["end_date"] = []string{"This field is required."}
	}
	if strings.TrimSpace(b.Reason) == "" {
		out["reason"] = []string{"This field may not be blank."}
	}
	return out
}

func (f *FakeAPI) createClosure(c *gin.Context) {
	user := currentUser(c)
	if user.Role != workflows.RoleRailwayOperator {
		forbidden(c)
		return
	}
	var in closureBody
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if problems := in.problems(); len(problems) > 0 {
		c.JSON(http.StatusBadRequest, problems)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	now := f.now()
	creator := user
	closure := &gateway.Closure{
		ID:              f.nextID,
		RailwayCrossing: in.RailwayCrossing,
		CreatedBy:       &creator,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		Reason:          in.Reason,
		Status:          workflows.StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
		Comments:        []gateway.Comment{},
	}
	f.closures[closure.ID] = closure
	f.logActivity(closure, user, "created the closure request")
	c.JSON(http.StatusCreated, f.render(closure))
}

// lookup loads the closure named by the :id parameter with the lock held.
func (f *FakeAPI) lookup(c *gin.Context) (*gateway.Closure, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return nil, false
	}
	closure, ok := f.closures[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No Closure matches the given query."})
		return nil, false
	}
	return closure, true
}

func (f *FakeAPI) getClosure(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, f.render(closure))
}

func (f *FakeAPI) updateClosure(c *gin.Context) {
	user := currentUser(c)
	if user.Role != workflows.RoleRailwayOperator {
		forbidden(c)
		return
	}
	var in closureBody
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if problems := in.problems(); len(problems) > 0 {
		c.JSON(http.StatusBadRequest, problems)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	closure.RailwayCrossing = in.RailwayCrossing
	closure.StartDate = in.StartDate
	closure.EndDate = in.EndDate
	closure.Reason = in.Reason
	closure.UpdatedAt = f.now()
	f.logActivity(closure, user, "edited the closure request")
	c.JSON(http.StatusOK, f.render(closure))
}

func (f *FakeAPI) deleteClosure(c *gin.Context) {
	if currentUser(c).Role != workflows.RoleRailwayOperator {
		forbidden(c)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	delete(f.closures, closure.ID)
	delete(f.documents, closure.ID)
	c.Status(http.StatusNoContent)
}

func (f *FakeAPI) sendForApproval(c *gin.Context) {
	user := currentUser(c)
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	if closure.Status != workflows.StatusDraft {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot send for approval"})
		return
	}
	closure.Status = workflows.StatusPending
	closure.UpdatedAt = f.now()
	f.logActivity(closure, user, "sent the closure for approval")
	c.JSON(http.StatusOK, gin.H{"status": "Sent for approval"})
}

func (f *FakeAPI) approveAdministration(c *gin.Context) {
	user := currentUser(c)
	if user.Role != workflows.RoleAdministration {
		forbidden(c)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	closure.AdminApproved = true
	closure.UpdatedAt = f.now()
	f.logActivity(closure, user, "approved on behalf of the administration")
	c.JSON(http.StatusOK, gin.H{"status": "Approved by administration"})
}

func (f *FakeAPI) approveGibdd(c *gin.Context) {
	user := currentUser(c)
	if user.Role != workflows.RoleTrafficPolice {
		forbidden(c)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	closure.GibddApproved = true
	if closure.AdminApproved {
		closure.Status = workflows.StatusApproved
	}
	closure.UpdatedAt = f.now()
	f.logActivity(closure, user, "approved on behalf of the traffic police")
	c.JSON(http.StatusOK, gin.H{"status": "Approved by traffic police"})
}

func (f *FakeAPI) reject(c *gin.Context) {
	user := currentUser(c)
	if !user.Role.IsApprover() {
		forbidden(c)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	if closure.Status != workflows.StatusPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot reject"})
		return
	}
	closure.Status = workflows.StatusRejected
	closure.UpdatedAt = f.now()
	f.logActivity(closure, user, "rejected the closure request")
	c.JSON(http.StatusOK, gin.H{"status": "Rejected"})
}

func (f *FakeAPI) sign(c *gin.Context) {
	var in struct {
		DigitalSignature string `json:"digital_signature"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.DigitalSignature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"digital_signature": []string{"This field is required."}})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	closure.DigitalSignature = in.DigitalSignature
	closure.UpdatedAt = f.now()
	c.JSON(http.StatusOK, gin.H{"status": "Signed"})
}

func (f *FakeAPI) listDocuments(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, append([]gateway.Document{}, f.documents[closure.ID]...))
}

func (f *FakeAPI) uploadDocument(c *gin.Context) {
	user := currentUser(c)
	if !strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data; boundary=") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"detail": "Unsupported media type."})
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"file": []string{"No file was submitted."}})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"file": []string{err.Error()}})
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	title := c.PostForm("title")
	if strings.TrimSpace(title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"title": []string{"This field may not be blank."}})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	doc := f.addDocument(closure.ID, title, c.PostForm("document_type"), header.Filename,
		header.Header.Get("Content-Type"), data, user)
	c.JSON(http.StatusCreated, doc)
}

func (f *FakeAPI) addDocument(closureID int64, title, docType, fileName, contentType string, data []byte, user gateway.User) gateway.Document {
	f.nextID++
	name := fmt.Sprintf("%d-%s", f.nextID, fileName)
	f.files[name] = storedFile{contentType: contentType, data: data}
	doc := gateway.Document{
		ID:           f.nextID,
		Title:        title,
		DocumentType: docType,
		Closure:      closureID,
		UploadedBy:   &gateway.UserRef{User: user},
		UploadedAt:   f.now(),
		File:         f.Server.URL + "/media/documents/" + name,
	}
	f.documents[closureID] = append(f.documents[closureID], doc)
	return doc
}

func (f *FakeAPI) deleteDocument(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	docID, _ := strconv.ParseInt(c.Param("docId"), 10, 64)
	docs := f.documents[closure.ID]
	for i, doc := range docs {
		if doc.ID == docID {
			f.documents[closure.ID] = append(docs[:i:i], docs[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

func (f *FakeAPI) addComment(c *gin.Context) {
	user := currentUser(c)
	var in struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"text": []string{"This field may not be blank."}})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	closure, ok := f.lookup(c)
	if !ok {
		return
	}
	f.nextID++
	author := user
	comment := gateway.Comment{ID: f.nextID, Closure: closure.ID, User: &author, Text: in.Text, CreatedAt: f.now()}
	closure.Comments = append(closure.Comments, comment)
	f.logActivity(closure, user, "commented")
	c.JSON(http.StatusCreated, comment)
}

func (f *FakeAPI) download(c *gin.Context) {
	f.mu.Lock()
	file, ok := f.files[c.Param("name")]
	f.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	c.Data(http.StatusOK, file.contentType, file.data)
}

// render returns the closure as the API shows it, with crossing detail and documents.
func (f *FakeAPI) render(closure *gateway.Closure) gateway.Closure {
	out := *closure
	crossing := f.crossing(closure.RailwayCrossing)
	out.RailwayCrossingDetail = &crossing
	out.StatusDisplay = workflows.StatusLabel(closure.Status)
	out.Comments = append([]gateway.Comment{}, closure.Comments...)
	out.Documents = append([]gateway.Document{}, f.documents[closure.ID]...)
	return out
}

func (f *FakeAPI) crossing(id int64) gateway.Crossing {
	for _, crossing := range f.crossings {
		if crossing.ID == id {
			return crossing
		}
	}
	return gateway.Crossing{ID: id, Name: fmt.Sprintf("Crossing %d", id)}
}

func (f *FakeAPI) sortedClosures() []*gateway.Closure {
	out := make([]*gateway.Closure, 0, len(f.closures))
	for _, closure := range f.closures {
		out = append(out, closure)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *FakeAPI) logActivity(closure *gateway.Closure, user gateway.User, text string) {
	f.nextID++
	actor := user
	f.activities = append(f.activities, gateway.Activity{
		ID:          f.nextID,
		ClosureID:   closure.ID,
		ClosureName: f.crossing(closure.RailwayCrossing).Name,
		User:        &actor,
		Text:        text,
		CreatedAt:   f.now(),
	})
}
