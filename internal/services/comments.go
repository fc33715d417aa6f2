package services

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"feedlink/internal/db"
	"feedlink/internal/models"
	"feedlink/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrInvalidParent = errors.New("parent comment not found on this post")
	ErrConflict      = errors.New("conflicting concurrent operation, retry")
)

// CommentCreated 是评论落库后交给实时推送的结果。
// Notification 为 nil 表示自己评论自己（不通知）
type CommentCreated struct {
	Comment      models.Comment
	Notification *models.Notification
}

// CreateComment 创建评论。父评论校验、ThreadID 解析、回复关系 upsert 和
// 通知落库在同一个事务里完成：要么全部生效，要么全部回滚
func CreateComment(pid string, author *models.User, content string, parentID *uint) (*CommentCreated, error) {
	result := &CommentCreated{}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Where("pid = ?", pid).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}

		comment := models.Comment{
			Cid:     utils.RandStringBytesMaskImpr(8),
			PostID:  post.ID,
			UserID:  author.ID,
			Content: content,
		}

		// 默认通知帖子作者，回复评论时改为通知被回复者
		recipientID := post.UserID
		ntype := models.NotificationTypeComment

		var parent models.Comment
		if parentID != nil {
			// 父评论必须在同一个帖子下，跨帖引用在这里就被拒绝，
			// 所以 ListComments 返回的 parent_id 永远能在结果集内解析
			if err := tx.Where("id = ? AND post_id = ?", *parentID, post.ID).First(&parent).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrInvalidParent
				}
				return err
			}
			comment.ParentID = parentID
			// ThreadID 直接复制父评论的，O(1)，不递归回溯到根
			comment.ThreadID = parent.ThreadID
			recipientID = parent.UserID
			ntype = models.NotificationTypeReply
		} else {
			// 根评论自成一个楼层
			comment.ThreadID = comment.Cid
		}

		if err := tx.Create(&comment).Error; err != nil {
			return err
		}

		// 回复关系聚合：作者不同才算一次"A 回复过 B"
		if parentID != nil && author.ID != parent.UserID {
			if err := upsertReplyRelation(tx, author.ID, parent.UserID); err != nil {
				return err
			}
		}

		// 自己评论自己的帖子/评论不产生通知
		if recipientID != author.ID {
			notification := models.Notification{
				UserID:    &recipientID,
				ActorID:   &author.ID,
				Type:      ntype,
				PostID:    post.ID,
				CommentID: &comment.ID,
				Message:   commentMessage(ntype, &post, &comment),
			}
			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
			result.Notification = &notification
		}

		result.Comment = comment
		return nil
	})
	if err != nil {
		// 并发删除帖子时外键兜底，让调用方重试
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, ErrConflict
		}
		return nil, err
	}

	return result, nil
}

func commentMessage(ntype models.NotificationType, post *models.Post, comment *models.Comment) string {
	switch ntype {
	case models.NotificationTypeReply:
		return fmt.Sprintf("在文章 <a href=\"/p/%s#comment-%d\" target=\"_blank\">《%s》</a> 中回复了您的评论",
			post.Pid, comment.ID, post.Title)
	default:
		return fmt.Sprintf("在您的文章 <a href=\"/p/%s#comment-%d\" target=\"_blank\">《%s》</a> 中发布了新的评论",
			post.Pid, comment.ID, post.Title)
	}
}

// ListComments 按创建顺序返回帖子的全部评论，树由调用方重建
func ListComments(pid string) ([]models.Comment, error) {
	var post models.Post
	if err := db.DB.Where("pid = ?", pid).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	var comments []models.Comment
	if err := db.DB.Preload("User").
		Where("post_id = ?", post.ID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// DeletePostCascade 删除帖子及其全部评论、点赞和通知，并在同一事务内
// 跑回复关系的清理。帖子不存在时是幂等空操作。返回被删评论的 ID
func DeletePostCascade(pid string) ([]uint, error) {
	var deletedIDs []uint

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Where("pid = ?", pid).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		var comments []models.Comment
		if err := tx.Select("id", "user_id", "parent_id").
			Where("post_id = ?", post.ID).
			Find(&comments).Error; err != nil {
			return err
		}

		for _, c := range comments {
			deletedIDs = append(deletedIDs, c.ID)
		}

		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		// 评论已删，同一事务内重查幸存证据后再清聚合关系
		if err := cleanupReplyRelations(tx, comments); err != nil {
			return err
		}

		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return deletedIDs, nil
}

// CommentNode 是客户端视角的评论树节点
type CommentNode struct {
	models.Comment
	Children []*CommentNode `json:"children"`
}

// BuildCommentTree 把平铺的评论列表重建为树：parent_id 在结果集内缺失时
// 退化为根节点（记日志，不报错），子节点按 CreatedAt 升序排列
func BuildCommentTree(comments []models.Comment) []*CommentNode {
	nodes := make(map[uint]*CommentNode, len(comments))
	for i := range comments {
		nodes[comments[i].ID] = &CommentNode{Comment: comments[i]}
	}

	var roots []*CommentNode
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
			log.Printf("comment %d references parent %d outside result set, treating as root", c.ID, *c.ParentID)
		}
		roots = append(roots, node)
	}

	var sortChildren func(ns []*CommentNode)
	sortChildren = func(ns []*CommentNode) {
		sort.SliceStable(ns, func(i, j int) bool {
			if ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
				return ns[i].ID < ns[j].ID
			}
			return ns[i].CreatedAt.Before(ns[j].CreatedAt)
		})
		for _, n := range ns {
			sortChildren(n.Children)
		}
	}
	sortChildren(roots)

	return roots
}

func upsertReplyRelation(tx *gorm.DB, authorID, targetID uint) error {
	relation := models.ReplyRelation{AuthorID: authorID, TargetID: targetID}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&relation).Error
}
