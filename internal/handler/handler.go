package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/drivewise/drivewise/internal/apperr"
	"github.com/drivewise/drivewise/internal/middleware"
	"github.com/drivewise/drivewise/internal/service"
	"github.com/drivewise/drivewise/internal/sitemap"
)

// maxRequestBody bounds a whole multipart request; individual files are
// checked against the stricter per-file limit by the services
const maxRequestBody = 64 << 20

// maxJSONBody bounds plain JSON request bodies
const maxJSONBody = 1 << 20

type Handler struct {
	listings    *service.ListingService
	accounts    *service.AccountService
	recommender *service.Recommender
	baseURL     string
	log         *logrus.Logger
}

func NewHandler(listings *service.ListingService, accounts *service.AccountService, recommender *service.Recommender, baseURL string, log *logrus.Logger) *Handler {
	return &Handler{
		listings:    listings,
		accounts:    accounts,
		recommender: recommender,
		baseURL:     baseURL,
		log:         log,
	}
}

// Signup handles user registration
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName      string `json:"fullName"`
		Email         string `json:"email"`
		Password      string `json:"password"`
		ContactNumber string `json:"contactNumber"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	user, token, err := h.accounts.Signup(r.Context(), service.SignupInput{
		FullName:      req.FullName,
		Email:         req.Email,
		Password:      req.Password,
		ContactNumber: req.ContactNumber,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Signup successful",
		"token":   token,
		"user":    user,
	})
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	user, token, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// ForgotPassword mails a reset link; the response never reveals whether the
// account exists
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "If the email is registered, a reset link has been sent",
	})
}

// ResetPassword sets a new password from a reset link token
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "Password has been reset"})
}

// ListCar handles listing creation with image uploads
func (h *Handler) ListCar(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerEmail(r.Context())
	if !ok {
		h.writeError(w, apperr.Auth("Authentication required"))
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, err)
		return
	}
	uploads, err := h.formUploads(r, "images")
	if err != nil {
		h.writeError(w, err)
		return
	}

	car, err := h.listings.Create(r.Context(), caller, service.CreateListingInput{
		Name:         r.FormValue("name"),
		Location:     r.FormValue("location"),
		Price:        r.FormValue("price"),
		Year:         r.FormValue("year"),
		Mileage:      r.FormValue("mileage"),
		Fuel:         r.FormValue("fuel"),
		Transmission: r.FormValue("transmission"),
		Category:     r.FormValue("category"),
		Make:         r.FormValue("make"),
		Model:        r.FormValue("model"),
		Description:  r.FormValue("description"),
		Uploads:      uploads,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Car listed successfully",
		"carId":   car.ID,
		"car":     car,
	})
}

// UpdateCar handles seller-initiated listing updates
func (h *Handler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerEmail(r.Context())
	if !ok {
		h.writeError(w, apperr.Auth("Authentication required"))
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, err)
		return
	}
	uploads, err := h.formUploads(r, "images")
	if err != nil {
		h.writeError(w, err)
		return
	}

	car, err := h.listings.Update(r.Context(), caller, mux.Vars(r)["id"], service.UpdateListingInput{
		Name:         r.FormValue("name"),
		Location:     r.FormValue("location"),
		Price:        r.FormValue("price"),
		Year:         r.FormValue("year"),
		Mileage:      r.FormValue("mileage"),
		Fuel:         r.FormValue("fuel"),
		Transmission: r.FormValue("transmission"),
		Category:     r.FormValue("category"),
		Make:         r.FormValue("make"),
		Model:        r.FormValue("model"),
		Description:  r.FormValue("description"),
		Uploads:      uploads,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Car updated successfully",
		"car":     car,
	})
}

// DeleteCar handles seller-initiated listing deletion
func (h *Handler) DeleteCar(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerEmail(r.Context())
	if !ok {
		h.writeError(w, apperr.Auth("Authentication required"))
		return
	}
	if err := h.listings.Delete(r.Context(), caller, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "Car deleted successfully"})
}

// Cars handles filtered, sorted, paginated browsing
func (h *Handler) Cars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	input := service.BrowseInput{
		Search:       q.Get("search"),
		Category:     q.Get("category"),
		FeaturedOnly: q.Get("featured") == "true",
		Sort:         q.Get("sort"),
		Page:         1,
		PageSize:     9,
	}

	var err error
	if input.MinPrice, err = optionalInt(q.Get("minPrice")); err != nil {
		h.writeError(w, apperr.ValidationField("minPrice", "minPrice must be a number"))
		return
	}
	if input.MaxPrice, err = optionalInt(q.Get("maxPrice")); err != nil {
		h.writeError(w, apperr.ValidationField("maxPrice", "maxPrice must be a number"))
		return
	}
	if v := q.Get("page"); v != "" {
		if input.Page, err = strconv.Atoi(v); err != nil {
			h.writeError(w, apperr.ValidationField("page", "Page must be a positive integer"))
			return
		}
	}
	if v := q.Get("pageSize"); v != "" {
		if input.PageSize, err = strconv.Atoi(v); err != nil {
			h.writeError(w, apperr.ValidationField("pageSize", "Page size must be a positive integer"))
			return
		}
	}

	result, err := h.listings.Browse(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Car returns a single listing by id
func (h *Handler) Car(w http.ResponseWriter, r *http.Request) {
	car, err := h.listings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"car": car})
}

// Categories returns the listing count per category
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.listings.CategoryCounts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"categories": counts})
}

// UserProfile returns the caller's account and listings
func (h *Handler) UserProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerEmail(r.Context())
	if !ok {
		h.writeError(w, apperr.Auth("Authentication required"))
		return
	}
	user, err := h.accounts.Profile(r.Context(), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cars, err := h.listings.BySeller(r.Context(), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"user": user, "cars": cars})
}

// UpdateUser handles profile updates including a new profile picture
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerEmail(r.Context())
	if !ok {
		h.writeError(w, apperr.Auth("Authentication required"))
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, err)
		return
	}

	input := service.UpdateProfileInput{
		FullName:      r.FormValue("fullName"),
		ContactNumber: r.FormValue("contactNumber"),
	}
	pictures, err := h.formUploads(r, "profilePicture")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(pictures) > 0 {
		input.Picture = &pictures[0]
	}

	user, err := h.accounts.UpdateProfile(r.Context(), caller, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// ChangePassword verifies the current password before storing a new one
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerEmail(r.Context())
	if !ok {
		h.writeError(w, apperr.Auth("Authentication required"))
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), caller, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

// DeleteAccount removes the caller's account, listings and assets
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerEmail(r.Context())
	if !ok {
		h.writeError(w, apperr.Auth("Authentication required"))
		return
	}
	if err := h.accounts.DeleteAccount(r.Context(), caller); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "Account deleted successfully"})
}

// Predict returns the recommended car name for the supplied preferences
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price              string `json:"price"`
		ModelYear          string `json:"modelYear"`
		EngineType         string `json:"engineType"`
		EngineCapacity     string `json:"engineCapacity"`
		Assembly           string `json:"assembly"`
		BodyType           string `json:"bodyType"`
		TransmissionType   string `json:"transmissionType"`
		RegistrationStatus string `json:"registrationStatus"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	label, err := h.recommender.Recommend(r.Context(), service.RecommendationInput{
		Price:              req.Price,
		ModelYear:          req.ModelYear,
		EngineType:         req.EngineType,
		EngineCapacity:     req.EngineCapacity,
		Assembly:           req.Assembly,
		BodyType:           req.BodyType,
		TransmissionType:   req.TransmissionType,
		RegistrationStatus: req.RegistrationStatus,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"carName": label})
}

// Sitemap renders the XML sitemap of listing pages
func (h *Handler) Sitemap(w http.ResponseWriter, r *http.Request) {
	cars, err := h.listings.All(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out, err := sitemap.Build(h.baseURL, cars)
	if err != nil {
		h.log.Errorf("Failed to build sitemap: %v", err)
		h.writeError(w, apperr.Dependency("failed to build sitemap", err))
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(out)
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.ValidationField("general", "Invalid request body")
	}
	return nil
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return apperr.ValidationField("general", "Request body must be multipart form data")
	}
	return nil
}

// formUploads reads the uploaded files under field into memory. Reads are
// capped just above the per-file limit so oversized files still reach the
// service layer's size check and produce its validation error.
func (h *Handler) formUploads(r *http.Request, field string) ([]service.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var uploads []service.Upload
	for _, header := range r.MultipartForm.File[field] {
		upload, err := readUpload(header)
		if err != nil {
			h.log.Errorf("Failed to read upload %q: %v", header.Filename, err)
			return nil, apperr.Dependency("failed to read uploaded file", err)
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readUpload(header *multipart.FileHeader) (service.Upload, error) {
	file, err := header.Open()
	if err != nil {
		return service.Upload{}, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, (5<<20)+1))
	if err != nil {
		return service.Upload{}, err
	}
	return service.Upload{Filename: header.Filename, Data: data}, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("Failed to write response: %v", err)
	}
}

// writeError maps a typed error to its transport status; dependency failures
// are logged with their cause but surfaced without internal detail
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	body := map[string]any{}

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
		if fields := apperr.FieldsOf(err); len(fields) > 0 {
			body["errors"] = fields
		} else {
			body["error"] = err.Error()
		}
	case apperr.KindNotFound:
		status = http.StatusNotFound
		body["error"] = errMessage(err)
	case apperr.KindConflict:
		status = http.StatusConflict
		body["error"] = errMessage(err)
	case apperr.KindAuth:
		status = http.StatusUnauthorized
		body["error"] = errMessage(err)
	default:
		status = http.StatusInternalServerError
		h.log.Errorf("Request failed: %v", err)
		body["error"] = "Internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func optionalInt(value string) (*int64, error) {
	if value == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
