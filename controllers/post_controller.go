package controllers

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postly/postly/middleware"
	"github.com/postly/postly/models"
	"github.com/postly/postly/utils"
)

// PostController manages CRUD operations for posts and their reactions.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// GetPost returns a single post by id.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("pid"))
	if !ok {
		utils.Fail(ctx, utils.ErrNotFound("could not find a post for the id provided"))
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(ctx, utils.ErrNotFound("could not find a post for the id provided"))
			return
		}
		utils.Fail(ctx, utils.ErrStore("something went wrong, please try again"))
		return
	}

	if err := p.attachReactions(&post); err != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, please try again"))
		return
	}

	utils.OK(ctx, gin.H{"post": post})
}

// GetUserPosts returns all posts created by a user. The user is looked up
// first so a missing user yields 404 while an existing user with no posts
// yields an empty list.
func (p *PostController) GetUserPosts(ctx *gin.Context) {
	userID, ok := parseID(ctx.Param("uid"))
	if !ok {
		utils.Fail(ctx, utils.ErrNotFound("could not find posts for the user id provided"))
		return
	}

	var user models.User
	if err := p.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(ctx, utils.ErrNotFound("could not find posts for the user id provided"))
			return
		}
		utils.Fail(ctx, utils.ErrStore("something went wrong, please try again"))
		return
	}

	posts := []models.Post{}
	if err := p.db.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&posts).Error; err != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, please try again"))
		return
	}

	refs := make([]*models.Post, len(posts))
	for i := range posts {
		refs[i] = &posts[i]
	}
	if err := p.attachReactions(refs...); err != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, please try again"))
		return
	}

	utils.OK(ctx, gin.H{"posts": posts})
}

// CreatePost stores a new post for the authenticated caller. The post row
// and the creator's post count commit in one transaction: both writes
// succeed or both roll back.
func (p *PostController) CreatePost(ctx *gin.Context) {
	imagePath, err := utils.SaveImage(ctx)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	title, description, vErr := validatePostInput(ctx.PostForm("title"), ctx.PostForm("description"))
	if vErr != nil {
		utils.Fail(ctx, vErr)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Fail(ctx, utils.ErrAuthentication())
		return
	}

	var user models.User
	if err := p.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(ctx, utils.ErrNotFound("could not find user for provided id"))
			return
		}
		utils.Fail(ctx, utils.ErrStore("creating post failed, please try again"))
		return
	}

	post := models.Post{
		UserID:      user.ID,
		Title:       title,
		Description: description,
		Image:       imagePath,
		Likes:       []uint{},
		Dislikes:    []uint{},
	}

	txErr := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("post_count", gorm.Expr("post_count + ?", 1)).Error
	})
	if txErr != nil {
		utils.Fail(ctx, utils.ErrStore("creating post failed, please try again"))
		return
	}

	utils.Created(ctx, gin.H{"post": post})
}

// UpdatePost lets the creator change a post's title and description.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, utils.ErrValidation("invalid inputs, please try again"))
		return
	}

	title, description, vErr := validatePostInput(req.Title, req.Description)
	if vErr != nil {
		utils.Fail(ctx, vErr)
		return
	}

	// Presence is checked before ownership: a missing post must answer 404,
	// never a fault from reading an absent creator field.
	postID, ok := parseID(ctx.Param("pid"))
	if !ok {
		utils.Fail(ctx, utils.ErrNotFound("could not find post for provided id"))
		return
	}
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(ctx, utils.ErrNotFound("could not find post for provided id"))
			return
		}
		utils.Fail(ctx, utils.ErrStore("something went wrong, post wasn't updated"))
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Fail(ctx, utils.ErrAuthentication())
		return
	}
	if post.UserID != userID {
		utils.Fail(ctx, utils.ErrAuthorization("you are not allowed to edit this post"))
		return
	}

	post.Title = title
	post.Description = description
	if err := p.db.Save(&post).Error; err != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, post wasn't updated"))
		return
	}

	if err := p.attachReactions(&post); err != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, please try again"))
		return
	}

	utils.OK(ctx, gin.H{"post": post})
}

// DeletePost removes a post, its reactions, and the creator's back
// reference in one transaction, then best-effort deletes the image file.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("pid"))
	if !ok {
		utils.Fail(ctx, utils.ErrNotFound("could not find post for this id"))
		return
	}
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(ctx, utils.ErrNotFound("could not find post for this id"))
			return
		}
		utils.Fail(ctx, utils.ErrStore("something went wrong, could not delete post"))
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Fail(ctx, utils.ErrAuthentication())
		return
	}
	if post.UserID != userID {
		utils.Fail(ctx, utils.ErrAuthorization("you are not allowed to delete this post"))
		return
	}

	imagePath := post.Image

	txErr := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Post{}, post.ID).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", post.UserID).
			UpdateColumn("post_count", gorm.Expr("post_count - ?", 1)).Error
	})
	if txErr != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, could not delete post"))
		return
	}

	// Non-fatal cleanup after the commit; a leftover file never fails the
	// response.
	utils.RemoveFile(imagePath)

	utils.OK(ctx, gin.H{"message": "Deleted post."})
}

// React records the caller's like or dislike on a post. One row per
// (user, post): switching kind replaces the previous reaction, so a user
// is never in both sets.
func (p *PostController) React(ctx *gin.Context) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, utils.ErrValidation("invalid inputs, please try again"))
		return
	}
	if req.Kind != models.ReactionLike && req.Kind != models.ReactionDislike {
		utils.Fail(ctx, utils.ErrValidation("kind must be \"like\" or \"dislike\""))
		return
	}

	post, err := p.findPost(ctx.Param("pid"))
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Fail(ctx, utils.ErrAuthentication())
		return
	}

	reaction := models.Reaction{UserID: userID, PostID: post.ID, Kind: req.Kind}
	if err := p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
	}).Create(&reaction).Error; err != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, post wasn't updated"))
		return
	}

	if err := p.attachReactions(post); err != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, please try again"))
		return
	}

	utils.OK(ctx, gin.H{"post": post})
}

// Unreact withdraws the caller's reaction on a post, if any.
func (p *PostController) Unreact(ctx *gin.Context) {
	post, err := p.findPost(ctx.Param("pid"))
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Fail(ctx, utils.ErrAuthentication())
		return
	}

	if err := p.db.Where("user_id = ? AND post_id = ?", userID, post.ID).
		Delete(&models.Reaction{}).Error; err != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, post wasn't updated"))
		return
	}

	if err := p.attachReactions(post); err != nil {
		utils.Fail(ctx, utils.ErrStore("something went wrong, please try again"))
		return
	}

	utils.OK(ctx, gin.H{"post": post})
}

func (p *PostController) findPost(param string) (*models.Post, error) {
	postID, ok := parseID(param)
	if !ok {
		return nil, utils.ErrNotFound("could not find post for provided id")
	}
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound("could not find post for provided id")
		}
		return nil, utils.ErrStore("something went wrong, please try again")
	}
	return &post, nil
}

// attachReactions resolves the like/dislike user-id sets for the given
// posts in a single query.
func (p *PostController) attachReactions(posts ...*models.Post) error {
	ids := make([]uint, 0, len(posts))
	byID := make(map[uint]*models.Post, len(posts))
	for _, post := range posts {
		post.Likes = []uint{}
		post.Dislikes = []uint{}
		ids = append(ids, post.ID)
		byID[post.ID] = post
	}
	if len(ids) == 0 {
		return nil
	}

	var reactions []models.Reaction
	if err := p.db.Where("post_id IN ?", ids).Find(&reactions).Error; err != nil {
		return err
	}
	for _, r := range reactions {
		post := byID[r.PostID]
		if post == nil {
			continue
		}
		if r.Kind == models.ReactionLike {
			post.Likes = append(post.Likes, r.UserID)
		} else {
			post.Dislikes = append(post.Dislikes, r.UserID)
		}
	}
	return nil
}

// validatePostInput sanitizes and checks the two mutable post fields:
// title non-empty, description at least 4 characters.
func validatePostInput(title, description string) (string, string, error) {
	title = utils.Sanitize(strings.TrimSpace(title))
	if title == "" {
		return "", "", utils.ErrValidation("title cannot be empty")
	}
	description = utils.Sanitize(strings.TrimSpace(description))
	if utf8.RuneCountInString(description) < 4 {
		return "", "", utils.ErrValidation("description must be at least 4 characters")
	}
	return title, description, nil
}

// parseID converts a path parameter to a numeric primary key. GORM treats
// a non-numeric inline condition as raw SQL, so anything that doesn't parse
// must be rejected here, before it reaches the store.
func parseID(param string) (uint, bool) {
	id, err := strconv.ParseUint(param, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}
