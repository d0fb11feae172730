package fakeapi

import (
	"cmp"
	"io"
	"mime/multipart"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"feedsync/internal/media"
	"feedsync/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
)

func (s *Server) profile(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	me := s.accounts[currentUserID(c)]
	return respond(c, fiber.StatusOK, "", s.userView(me))
}

func (s *Server) follow(c *fiber.Ctx) error {
	targetID := c.Params("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[currentUserID(c)]
	target, ok := s.accounts[targetID]
	switch {
	case !ok:
		return respondError(c, fiber.StatusNotFound, "User not found")
	case target.ID == me.ID:
		return respondError(c, fiber.StatusBadRequest, "You cannot follow yourself")
	case models.ContainsID(me.Followings, target.ID):
		return respondError(c, fiber.StatusBadRequest, "You already follow this user")
	case models.ContainsID(me.SentRequests, target.ID):
		return respondError(c, fiber.StatusBadRequest, "Follow request already sent")
	case models.ContainsID(me.FollowerRequests, target.ID):
		return respondError(c, fiber.StatusBadRequest, "This user has requested to follow you; accept or dismiss the request first")
	case target.Private && models.ContainsID(target.Followings, me.ID):
		// A request would put me in both their followings and followerRequests.
		return respondError(c, fiber.StatusBadRequest, "This private user already follows you and cannot receive a follow request")
	}

	message := "User followed"
	if target.Private {
		me.SentRequests = models.AddID(me.SentRequests, target.ID)
		target.FollowerRequests = models.AddID(target.FollowerRequests, me.ID)
		message = "Follow request sent"
	} else {
		me.Followings = models.AddID(me.Followings, target.ID)
		target.Followers = models.AddID(target.Followers, me.ID)
	}
	return respond(c, fiber.StatusOK, message, models.FollowResult{User: s.summary(target.ID)})
}

func (s *Server) unfollow(c *fiber.Ctx) error {
	targetID := c.Params("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[currentUserID(c)]
	target, ok := s.accounts[targetID]
	if !ok {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}
	if !models.ContainsID(me.Followings, target.ID) {
		return respondError(c, fiber.StatusBadRequest, "You do not follow this user")
	}
	me.Followings = models.RemoveID(me.Followings, target.ID)
	target.Followers = models.RemoveID(target.Followers, me.ID)
	return respond(c, fiber.StatusOK, "User unfollowed", nil)
}

func (s *Server) cancelRequest(c *fiber.Ctx) error {
	targetID := c.Params("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[currentUserID(c)]
	target, ok := s.accounts[targetID]
	if !ok {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}
	if !models.ContainsID(me.SentRequests, target.ID) {
		return respondError(c, fiber.StatusBadRequest, "No pending request to this user")
	}
	me.SentRequests = models.RemoveID(me.SentRequests, target.ID)
	target.FollowerRequests = models.RemoveID(target.FollowerRequests, me.ID)
	return respond(c, fiber.StatusOK, "Follow request cancelled", nonNil(me.SentRequests))
}

func (s *Server) acceptRequest(c *fiber.Ctx) error {
	requesterID := c.Params("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[currentUserID(c)]
	if !models.ContainsID(me.FollowerRequests, requesterID) {
		return respondError(c, fiber.StatusBadRequest, "No pending request from this user")
	}
	me.FollowerRequests = models.RemoveID(me.FollowerRequests, requesterID)
	if requester, ok := s.accounts[requesterID]; ok {
		me.Followers = models.AddID(me.Followers, requester.ID)
		requester.Followings = models.AddID(requester.Followings, me.ID)
		requester.SentRequests = models.RemoveID(requester.SentRequests, me.ID)
	}
	return respond(c, fiber.StatusOK, "Follow request accepted", models.AcceptResult{
		FollowerRequests: nonNil(me.FollowerRequests),
		Followers:        nonNil(me.Followers),
	})
}

func (s *Server) dismissRequest(c *fiber.Ctx) error {
	requesterID := c.Params("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[currentUserID(c)]
	if !models.ContainsID(me.FollowerRequests, requesterID) {
		return respondError(c, fiber.StatusBadRequest, "No pending request from this user")
	}
	me.FollowerRequests = models.RemoveID(me.FollowerRequests, requesterID)
	if requester, ok := s.accounts[requesterID]; ok {
		requester.SentRequests = models.RemoveID(requester.SentRequests, me.ID)
	}
	return respond(c, fiber.StatusOK, "Follow request dismissed", nonNil(me.FollowerRequests))
}

func (s *Server) editProfile(c *fiber.Ctx) error {
	var name *string
	if v := c.FormValue("name"); v != "" {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return respondError(c, fiber.StatusBadRequest, "Name cannot be empty")
		}
		name = &trimmed
	}
	var private *bool
	if v := c.FormValue("private"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "private must be true or false")
		}
		private = &b
	}

	var picture *models.Upload
	if fh, err := c.FormFile("profilePicture"); err == nil {
		up, err := readUpload(fh.Filename, fh.Open)
		if err != nil {
			return err
		}
		if err := media.ValidateImage(up); err != nil {
			return respondError(c, fiber.StatusBadRequest, models.MessageOf(err))
		}
		picture = &up
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[currentUserID(c)]
	if name != nil {
		me.Name = *name
	}
	if private != nil {
		me.Private = *private
	}
	if picture != nil {
		me.ProfilePicture = s.storeImage(*picture)
	}
	return respond(c, fiber.StatusOK, "Profile updated successfully", models.ProfileFields{
		Name:           me.Name,
		Private:        me.Private,
		ProfilePicture: me.ProfilePicture,
	})
}

func (s *Server) searchUsers(c *fiber.Ctx) error {
	q, err := url.PathUnescape(c.Params("q"))
	if err != nil {
		q = c.Params("q")
	}
	q = strings.ToLower(strings.TrimSpace(q))

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.UserSummary{}
	if q == "" {
		return respond(c, fiber.StatusOK, "", out)
	}
	for _, a := range s.accounts {
		if strings.Contains(strings.ToLower(a.Name), q) {
			out = append(out, s.summary(a.ID))
		}
	}
	sortSummaries(out)
	return respond(c, fiber.StatusOK, "", out)
}

func (s *Server) followers(c *fiber.Ctx) error {
	return s.graphList(c, func(a *account) []string { return a.Followers })
}

func (s *Server) followings(c *fiber.Ctx) error {
	return s.graphList(c, func(a *account) []string { return a.Followings })
}

func (s *Server) graphList(c *fiber.Ctx, edges func(*account) []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	me := s.accounts[currentUserID(c)]
	owner, ok := s.accounts[c.Params("id")]
	if !ok {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}
	if !s.canSee(me, owner) {
		return respondError(c, fiber.StatusForbidden, "This account is private")
	}
	return respond(c, fiber.StatusOK, "", s.summaries(edges(owner)))
}

func (s *Server) sentRequests(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	me := s.accounts[currentUserID(c)]
	return respond(c, fiber.StatusOK, "", s.summaries(me.SentRequests))
}

func (s *Server) followerRequests(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	me := s.accounts[currentUserID(c)]
	return respond(c, fiber.StatusOK, "", s.summaries(me.FollowerRequests))
}

// storeImage must be called with s.mu held. It returns the image reference
// the client resolves against /images/.
func (s *Server) storeImage(up models.Upload) string {
	format, _, _, err := media.Inspect(up)
	if err != nil {
		format = strings.TrimPrefix(path.Ext(up.Filename), ".")
	}
	name := strings.ToLower(ulid.Make().String())
	if format != "" {
		name += "." + format
	}
	s.images[name] = storedImage{contentType: contentTypeFor(format), data: up.Data}
	return name
}

func contentTypeFor(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "jpeg", "jpg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func readUpload(filename string, open func() (multipart.File, error)) (models.Upload, error) {
	f, err := open()
	if err != nil {
		return models.Upload{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return models.Upload{}, err
	}
	return models.Upload{Filename: filename, Data: data}, nil
}

func sortSummaries(users []models.UserSummary) {
	slices.SortFunc(users, func(a, b models.UserSummary) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})
}
