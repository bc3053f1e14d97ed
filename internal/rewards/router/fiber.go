package router

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/SakuraBurst/rewards/internal/rewards/config"
	"github.com/SakuraBurst/rewards/internal/rewards/controller"
	"github.com/SakuraBurst/rewards/internal/rewards/flow"
	"github.com/SakuraBurst/rewards/internal/rewards/router/middleware"
	"github.com/SakuraBurst/rewards/internal/rewards/selectors"
	"github.com/SakuraBurst/rewards/internal/rewards/session"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type rewardsController interface {
	SignUp(ctx context.Context, user *types.UserRequest) (uuid.UUID, error)
	Authorize(ctx context.Context, user *types.UserRequest) (string, *types.Actor, error)
	SessionTTL() time.Duration
	Now() time.Time
	Summary(ctx context.Context, userID uuid.UUID) (*controller.Summary, error)
	Catalog(ctx context.Context, userID uuid.UUID, filter selectors.Filter) (*controller.Catalog, error)
	Reward(ctx context.Context, rewardID uuid.UUID) (*types.Reward, error)
	UserPoints(ctx context.Context, userID uuid.UUID) (*types.UserPoints, error)
	Close() error
}

type flowSessions interface {
	Get(actor types.Actor) *flow.Session
	Drop(userID uuid.UUID)
}

type HttpRouter struct {
	controller rewardsController
	sessions   flowSessions
	*fiber.App
	appLogger *zap.Logger
	httpPort  string
	jwtSecret []byte
	webRoot   string
	secure    bool
}

const internalServerErrorMessage = "Something went wrong on our side"
const badRequestMessage = "Malformed request data"

type selectRequest struct {
	RewardID string `json:"reward_id"`
}

type startShareRequest struct {
	Content  string         `json:"stack_content"`
	Platform types.Platform `json:"platform"`
}

type submitShareRequest struct {
	Link string `json:"share_link"`
}

func (r *HttpRouter) Run() error {
	return r.App.Listen(":" + r.httpPort)
}

func (r *HttpRouter) Close() error {
	if err := r.controller.Close(); err != nil {
		r.appLogger.Error("controller.Close failed: ", zap.Error(err))
	}
	return r.App.Shutdown()
}

func errorResponse(ctx *fiber.Ctx, status int, message string, data any) error {
	ctx.Status(status)
	body := fiber.Map{"status": "error", "message": message}
	if data != nil {
		body["data"] = data
	}
	return ctx.JSON(body)
}

func successResponse(ctx *fiber.Ctx, data any) error {
	ctx.Status(http.StatusOK)
	return ctx.JSON(fiber.Map{"status": "success", "data": data})
}

// actor reads the user the jwt middleware verified.
func (r *HttpRouter) actor(ctx *fiber.Ctx) (*types.Actor, error) {
	token, _ := ctx.Locals(middleware.TokenKey).(*jwt.Token)
	return session.FromToken(token)
}

// flowError writes the response for a failed flow action. notice is the
// flow's notice after the action, if any.
func (r *HttpRouter) flowError(ctx *fiber.Ctx, err error, notice *flow.Notice, data any) error {
	var remote *controller.RemoteError
	switch {
	case errors.Is(err, flow.ErrInvalidInput), errors.Is(err, selectors.ErrUnknownPlatform):
		message := badRequestMessage
		if notice != nil {
			message = notice.Message
		}
		return errorResponse(ctx, http.StatusBadRequest, message, data)
	case errors.Is(err, flow.ErrNotRedeemable), errors.Is(err, flow.ErrAlreadyClaimed),
		errors.Is(err, flow.ErrInFlight), errors.Is(err, flow.ErrBadTransition):
		return errorResponse(ctx, http.StatusConflict, err.Error(), data)
	case errors.As(err, &remote):
		return errorResponse(ctx, http.StatusUnprocessableEntity, remote.Message, data)
	}
	r.appLogger.Error("flow action failed: ", zap.Error(err))
	message := internalServerErrorMessage
	if notice != nil {
		message = notice.Message
	}
	return errorResponse(ctx, http.StatusInternalServerError, message, data)
}

func (r *HttpRouter) SignUp(ctx *fiber.Ctx) error {
	request := &types.UserRequest{}
	err := ctx.BodyParser(request)
	if err != nil {
		r.appLogger.Error("ctx.BodyParser failed: ", zap.Error(err))
		return errorResponse(ctx, http.StatusBadRequest, badRequestMessage, nil)
	}
	if request.Referrer == "" {
		request.Referrer = ctx.Query("ref")
	}
	if request.Email == "" || request.Password == "" {
		return errorResponse(ctx, http.StatusBadRequest, "Email and password are required", nil)
	}
	id, err := r.controller.SignUp(ctx.Context(), request)
	var remote *controller.RemoteError
	if errors.As(err, &remote) {
		return errorResponse(ctx, http.StatusUnprocessableEntity, remote.Message, nil)
	}
	if err != nil {
		r.appLogger.Error("controller.SignUp failed: ", zap.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, internalServerErrorMessage, nil)
	}
	ctx.Status(http.StatusCreated)
	return ctx.JSON(fiber.Map{"status": "success", "id": id})
}

func (r *HttpRouter) Login(ctx *fiber.Ctx) error {
	request := &types.UserRequest{}
	err := ctx.BodyParser(request)
	if err != nil {
		r.appLogger.Error("ctx.BodyParser failed: ", zap.Error(err))
		return errorResponse(ctx, http.StatusBadRequest, badRequestMessage, nil)
	}
	if request.Email == "" || request.Password == "" {
		return errorResponse(ctx, http.StatusBadRequest, "Email and password are required", nil)
	}
	token, actor, err := r.controller.Authorize(ctx.Context(), request)
	if errors.Is(err, controller.ErrInvalidCredentials) {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid email or password", nil)
	}
	if err != nil {
		r.appLogger.Error("controller.Authorize failed: ", zap.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, internalServerErrorMessage, nil)
	}
	ctx.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  r.controller.Now().Add(r.controller.SessionTTL()),
		HTTPOnly: true,
		Secure:   r.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	ctx.Status(http.StatusOK)
	return ctx.JSON(fiber.Map{"status": "success", "message": token, "user": actor})
}

func (r *HttpRouter) Logout(ctx *fiber.Ctx) error {
	if actor, err := session.Parse(ctx.Cookies(session.CookieName), r.jwtSecret); err == nil {
		r.sessions.Drop(actor.ID)
	}
	ctx.ClearCookie(session.CookieName)
	ctx.Status(http.StatusOK)
	return ctx.JSON(fiber.Map{"status": "success"})
}

func (r *HttpRouter) GetSummary(ctx *fiber.Ctx) error {
	actor, err := r.actor(ctx)
	if err != nil {
		return errorResponse(ctx, http.StatusUnauthorized, "Authorization required", nil)
	}
	summary, err := r.controller.Summary(ctx.Context(), actor.ID)
	if err != nil {
		r.appLogger.Error("controller.Summary failed: ", zap.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, internalServerErrorMessage, nil)
	}
	return successResponse(ctx, summary)
}

func (r *HttpRouter) GetCatalog(ctx *fiber.Ctx) error {
	actor, err := r.actor(ctx)
	if err != nil {
		return errorResponse(ctx, http.StatusUnauthorized, "Authorization required", nil)
	}
	filter, err := selectors.ParseFilter(ctx.Query("filter"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, badRequestMessage, nil)
	}
	catalog, err := r.controller.Catalog(ctx.Context(), actor.ID, filter)
	if err != nil {
		r.appLogger.Error("controller.Catalog failed: ", zap.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, internalServerErrorMessage, nil)
	}
	return successResponse(ctx, catalog)
}

// withSession runs handler with the caller's flow session.
func (r *HttpRouter) withSession(handler func(*fiber.Ctx, *types.Actor, *flow.Session) error) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		actor, err := r.actor(ctx)
		if err != nil {
			return errorResponse(ctx, http.StatusUnauthorized, "Authorization required", nil)
		}
		return handler(ctx, actor, r.sessions.Get(*actor))
	}
}

func (r *HttpRouter) GetRedemption(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	return successResponse(ctx, s.Redemption.Snapshot())
}

func (r *HttpRouter) SelectReward(ctx *fiber.Ctx, actor *types.Actor, s *flow.Session) error {
	request := &selectRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, badRequestMessage, nil)
	}
	rewardID, err := uuid.Parse(request.RewardID)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, badRequestMessage, nil)
	}
	reward, err := r.controller.Reward(ctx.Context(), rewardID)
	if errors.Is(err, controller.ErrRewardNotExist) {
		return errorResponse(ctx, http.StatusNotFound, "Reward not found", nil)
	}
	if err != nil {
		r.appLogger.Error("controller.Reward failed: ", zap.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, internalServerErrorMessage, nil)
	}
	points, err := r.controller.UserPoints(ctx.Context(), actor.ID)
	if err != nil {
		r.appLogger.Error("controller.UserPoints failed: ", zap.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, internalServerErrorMessage, nil)
	}
	if err := s.Redemption.Select(reward, points.PointsBalance); err != nil {
		snap := s.Redemption.Snapshot()
		return r.flowError(ctx, err, snap.Notice, snap)
	}
	return successResponse(ctx, s.Redemption.Snapshot())
}

func (r *HttpRouter) CancelRedemption(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	if err := s.Redemption.Cancel(); err != nil {
		snap := s.Redemption.Snapshot()
		return r.flowError(ctx, err, snap.Notice, snap)
	}
	return successResponse(ctx, s.Redemption.Snapshot())
}

func (r *HttpRouter) ConfirmRedemption(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	if err := s.Redemption.Confirm(ctx.Context()); err != nil {
		snap := s.Redemption.Snapshot()
		return r.flowError(ctx, err, snap.Notice, snap)
	}
	return successResponse(ctx, s.Redemption.Snapshot())
}

func (r *HttpRouter) DismissRedemption(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	if err := s.Redemption.Dismiss(); err != nil {
		snap := s.Redemption.Snapshot()
		return r.flowError(ctx, err, snap.Notice, snap)
	}
	return successResponse(ctx, s.Redemption.Snapshot())
}

func (r *HttpRouter) GetClaim(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	if _, err := s.Claim.Refresh(ctx.Context()); err != nil {
		r.appLogger.Error("Claim.Refresh failed: ", zap.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, internalServerErrorMessage, nil)
	}
	return successResponse(ctx, s.Claim.Snapshot())
}

func (r *HttpRouter) ClaimDaily(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	if err := s.Claim.Claim(ctx.Context()); err != nil {
		snap := s.Claim.Snapshot()
		return r.flowError(ctx, err, snap.Notice, snap)
	}
	return successResponse(ctx, s.Claim.Snapshot())
}

func (r *HttpRouter) DismissClaim(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	if err := s.Claim.DismissSuccess(); err != nil {
		snap := s.Claim.Snapshot()
		return r.flowError(ctx, err, snap.Notice, snap)
	}
	return successResponse(ctx, s.Claim.Snapshot())
}

func (r *HttpRouter) GetShare(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	return successResponse(ctx, s.Share.Snapshot())
}

func (r *HttpRouter) StartShare(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	request := &startShareRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, badRequestMessage, nil)
	}
	if _, err := s.Share.Start(request.Content, request.Platform); err != nil {
		snap := s.Share.Snapshot()
		return r.flowError(ctx, err, snap.Notice, snap)
	}
	return successResponse(ctx, s.Share.Snapshot())
}

func (r *HttpRouter) BackShare(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	if err := s.Share.Back(); err != nil {
		snap := s.Share.Snapshot()
		return r.flowError(ctx, err, snap.Notice, snap)
	}
	return successResponse(ctx, s.Share.Snapshot())
}

func (r *HttpRouter) SubmitShare(ctx *fiber.Ctx, _ *types.Actor, s *flow.Session) error {
	request := &submitShareRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, badRequestMessage, nil)
	}
	if _, err := s.Share.Submit(ctx.Context(), request.Link); err != nil {
		snap := s.Share.Snapshot()
		return r.flowError(ctx, err, snap.Notice, snap)
	}
	return successResponse(ctx, s.Share.Snapshot())
}

func (r *HttpRouter) Page(ctx *fiber.Ctx) error {
	return ctx.SendFile(filepath.Join(r.webRoot, "index.html"))
}

func CreateRouter(c rewardsController, sessions flowSessions, cfg *config.Config, logger *zap.Logger) *HttpRouter {
	appLogger := logger.Named("app")
	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	r := &HttpRouter{
		controller: c,
		sessions:   sessions,
		App:        app,
		appLogger:  appLogger,
		httpPort:   cfg.HttpPort,
		jwtSecret:  []byte(cfg.JWTSecret),
		webRoot:    cfg.WebRoot,
		secure:     cfg.Env != "local",
	}
	api := r.Group("/api/v1")
	api.Post("/signup", r.SignUp)
	api.Post("/login", r.Login)
	api.Post("/logout", r.Logout)

	rewards := api.Group("/rewards", middleware.Protected(r.jwtSecret))
	rewards.Get("/summary", r.GetSummary)
	rewards.Get("/catalog", r.GetCatalog)
	rewards.Get("/redeem", r.withSession(r.GetRedemption))
	rewards.Post("/redeem/select", r.withSession(r.SelectReward))
	rewards.Post("/redeem/cancel", r.withSession(r.CancelRedemption))
	rewards.Post("/redeem/confirm", r.withSession(r.ConfirmRedemption))
	rewards.Post("/redeem/dismiss", r.withSession(r.DismissRedemption))
	rewards.Get("/claim", r.withSession(r.GetClaim))
	rewards.Post("/claim", r.withSession(r.ClaimDaily))
	rewards.Post("/claim/dismiss", r.withSession(r.DismissClaim))
	rewards.Get("/share", r.withSession(r.GetShare))
	rewards.Post("/share/start", r.withSession(r.StartShare))
	rewards.Post("/share/back", r.withSession(r.BackShare))
	rewards.Post("/share/submit", r.withSession(r.SubmitShare))

	pages := app.Group("/", middleware.RouteGuard(r.jwtSecret))
	for _, p := range []string{"/", "/rewards", "/rewards/*", "/login", "/signup", "/forgot-password", "/reset-password"} {
		pages.Get(p, r.Page)
	}
	app.Static("/", cfg.WebRoot)
	return r
}
