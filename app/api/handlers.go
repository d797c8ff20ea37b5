package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/izotovlife/izotovlife.ru-sub000/app/database"
	"github.com/izotovlife/izotovlife.ru-sub000/app/feed"
	"github.com/izotovlife/izotovlife.ru-sub000/app/ingest"
	"github.com/izotovlife/izotovlife.ru-sub000/app/tasks"
)

type HandlerDeps struct {
	Sources       database.SourceRepository
	Items         database.ItemRepository
	Categories    database.CategoryRepository
	Generator     GeneratorInterface
	ConfigCache   *feed.ConfigCache
	Scheduler     tasks.TaskSchedulerInterface
	Ingester      tasks.Ingester
	Classifier    tasks.Reclassifier
	ClassifyLimit int
	BaseURL       string
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		sourceRepo:    deps.Sources,
		itemRepo:      deps.Items,
		categoryRepo:  deps.Categories,
		generator:     deps.Generator,
		configCache:   deps.ConfigCache,
		scheduler:     deps.Scheduler,
		ingester:      deps.Ingester,
		classifier:    deps.Classifier,
		classifyLimit: deps.ClassifyLimit,
		baseURL:       strings.TrimRight(deps.BaseURL, "/"),
	}
}

func (h *Handler) ListNews(c *gin.Context) {
	limit, err := queryInt(c, "limit", DefaultPageSize)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter"})
		return
	}
	limit = min(limit, MaxPageSize)

	filter := database.ItemFilter{
		SourceSlug:   c.Query("source"),
		CategorySlug: c.Query("category"),
		Limit:        limit,
		Offset:       offset,
	}

	items, err := h.itemRepo.List(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total, err := h.itemRepo.Count(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "count_items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, NewsList{
		Items:  lo.Map(items, func(item database.ItemView, _ int) NewsItem { return h.newsItem(item) }),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *Handler) GetNews(c *gin.Context) {
	slug := c.Param("slug")

	item, err := h.itemRepo.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		slog.Error("Database error", "operation", "get_item", "slug", slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "News item not found"})
		return
	}

	c.JSON(http.StatusOK, h.newsItem(*item))
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.categoryRepo.List(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_categories", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": lo.Map(categories, func(cat database.CategoryCount, _ int) CategoryInfo {
			return CategoryInfo{Name: cat.Name, Slug: cat.Slug, Items: cat.Items}
		}),
		"total": len(categories),
	})
}

func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.sourceRepo.List(c.Request.Context(), false)
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": lo.Map(sources, func(s database.Source, _ int) SourceInfo {
			return SourceInfo{
				Name:          s.Name,
				Slug:          s.Slug,
				FeedURL:       s.FeedURL,
				IsActive:      s.IsActive,
				LastFetchedAt: s.LastFetchedAt,
			}
		}),
		"total": len(sources),
	})
}

func (h *Handler) GetFeed(c *gin.Context) {
	slug := c.Param("source")

	source, err := h.sourceRepo.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", slug, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if source == nil {
		c.Status(http.StatusNotFound)
		return
	}

	limit := FeedItemsLimit
	if h.configCache != nil {
		if sourceConfig, err := h.configCache.GetConfig(source.Key); err == nil && sourceConfig.Settings.MaxItems > 0 {
			limit = sourceConfig.Settings.MaxItems
		}
	}

	items, err := h.itemRepo.List(c.Request.Context(), database.ItemFilter{SourceSlug: source.Slug, Limit: limit})
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "source", slug, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*source, items)
	if err != nil {
		slog.Error("RSS generation error", "source", slug, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Source", source.Slug)
	c.Header("X-Last-Updated", source.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sources, err := h.sourceRepo.List(c.Request.Context(), true); err == nil {
		health["active_sources"] = len(sources)
	} else {
		health["status"] = "degraded"
		slog.Warn("Health check database error", "error", err)
	}

	if h.configCache != nil {
		health["loaded_configurations"] = h.configCache.GetConfigCount()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) TriggerIngest(c *gin.Context) {
	var only []string
	for _, value := range c.QueryArray("only") {
		only = append(only, lo.Compact(lo.Map(strings.Split(value, ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))...)
	}

	h.enqueue(c, tasks.NewIngestTask(h.ingester, ingest.Options{Only: only}))
}

func (h *Handler) TriggerClassify(c *gin.Context) {
	limit, err := queryInt(c, "limit", h.classifyLimit)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	h.enqueue(c, tasks.NewClassifyTask(h.classifier, limit))
}

func (h *Handler) enqueue(c *gin.Context, task tasks.TaskInterface) {
	err := h.scheduler.EnqueueTask(task)
	switch {
	case errors.Is(err, tasks.ErrTaskPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Task already pending", "type": task.GetType()})
		return
	case err != nil:
		slog.Error("Error enqueueing task", "type", string(task.GetType()), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue task", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task":    TaskInfo{ID: task.GetID(), Type: task.GetType(), Target: task.GetTarget()},
	})
}

func (h *Handler) newsItem(item database.ItemView) NewsItem {
	return NewsItem{
		Title:       item.Title,
		Slug:        item.Slug,
		Summary:     item.Summary,
		Image:       item.ImageURL,
		PublishedAt: item.PublishedAt,
		Source:      item.SourceName,
		Category:    item.CategoryName,
		SEOURL:      SEOURL(h.baseURL, item.CategorySlug, item.Slug),
	}
}

// SEOURL is the public page of an item: "{base}/{category}/{slug}/".
func SEOURL(baseURL, categorySlug, itemSlug string) string {
	if categorySlug == "" {
		categorySlug = "news"
	}
	return strings.TrimRight(baseURL, "/") + "/" + categorySlug + "/" + itemSlug + "/"
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
