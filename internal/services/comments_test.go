package services

import (
	"fmt"
	"os"
	"testing"

	"feedlink/internal/db"
	"feedlink/internal/models"
	"feedlink/internal/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupTestDB 连接 TEST_DATABASE_URL 指向的库并清空数据，没配置就跳过
func setupTestDB(t *testing.T) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.ReplyRelation{},
		&models.Notification{},
	))

	db.DB = gdb
	require.NoError(t, gdb.Exec(
		"TRUNCATE notifications, likes, reply_relations, comments, posts, users RESTART IDENTITY CASCADE",
	).Error)
}

func createTestUser(t *testing.T, name string) *models.User {
	t.Helper()
	user := models.User{Username: name, Email: fmt.Sprintf("%s@example.com", name)}
	require.NoError(t, db.DB.Create(&user).Error)
	return &user
}

func createTestPost(t *testing.T, author *models.User, title string) *models.Post {
	t.Helper()
	post := models.Post{
		Pid:    utils.RandStringBytesMaskImpr(8),
		UserID: author.ID,
		Title:  title,
	}
	require.NoError(t, db.DB.Create(&post).Error)
	return &post
}

func TestCreateCommentThreadIDCopiedFromParent(t *testing.T) {
	setupTestDB(t)
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	post := createTestPost(t, alice, "hello")

	root, err := CreateComment(post.Pid, bob, "根评论 🌱", nil)
	require.NoError(t, err)
	require.Equal(t, root.Comment.Cid, root.Comment.ThreadID)

	reply, err := CreateComment(post.Pid, alice, "回复", &root.Comment.ID)
	require.NoError(t, err)
	require.Equal(t, root.Comment.Cid, reply.Comment.ThreadID)

	// 多层嵌套也只复制父评论的 ThreadID，仍然落在同一楼层
	nested, err := CreateComment(post.Pid, bob, "再回复", &reply.Comment.ID)
	require.NoError(t, err)
	require.Equal(t, root.Comment.Cid, nested.Comment.ThreadID)
}

func TestCreateCommentValidation(t *testing.T) {
	setupTestDB(t)
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	post := createTestPost(t, alice, "post one")
	other := createTestPost(t, alice, "post two")

	_, err := CreateComment("missing0", bob, "x", nil)
	require.ErrorIs(t, err, ErrPostNotFound)

	onOther, err := CreateComment(other.Pid, bob, "elsewhere", nil)
	require.NoError(t, err)

	// 父评论在另一个帖子下
	_, err = CreateComment(post.Pid, bob, "x", &onOther.Comment.ID)
	require.ErrorIs(t, err, ErrInvalidParent)

	missingParent := uint(424242)
	_, err = CreateComment(post.Pid, bob, "x", &missingParent)
	require.ErrorIs(t, err, ErrInvalidParent)

	// 校验失败不留痕
	var count int64
	db.DB.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count)
	require.Zero(t, count)
}

func TestCreateCommentNotificationRouting(t *testing.T) {
	setupTestDB(t)
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	carol := createTestUser(t, "carol")
	post := createTestPost(t, alice, "routing")

	// 评论别人的帖子 → 通知帖子作者
	root, err := CreateComment(post.Pid, bob, "评论", nil)
	require.NoError(t, err)
	require.NotNil(t, root.Notification)
	require.Equal(t, alice.ID, *root.Notification.UserID)
	require.Equal(t, models.NotificationTypeComment, root.Notification.Type)
	require.NotNil(t, root.Notification.CommentID)

	// 回复别人的评论 → 通知被回复者而不是帖子作者
	reply, err := CreateComment(post.Pid, carol, "回复", &root.Comment.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.Notification)
	require.Equal(t, bob.ID, *reply.Notification.UserID)
	require.Equal(t, models.NotificationTypeReply, reply.Notification.Type)

	// 自己评论自己的帖子 → 静默
	own, err := CreateComment(post.Pid, alice, "自评", nil)
	require.NoError(t, err)
	require.Nil(t, own.Notification)

	// 自己回复自己的评论 → 静默
	selfReply, err := CreateComment(post.Pid, bob, "自回", &root.Comment.ID)
	require.NoError(t, err)
	require.Nil(t, selfReply.Notification)
}

func TestListCommentsParentsResolveInResult(t *testing.T) {
	setupTestDB(t)
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	post := createTestPost(t, alice, "list")

	root, err := CreateComment(post.Pid, bob, "one", nil)
	require.NoError(t, err)
	_, err = CreateComment(post.Pid, alice, "two", &root.Comment.ID)
	require.NoError(t, err)
	_, err = CreateComment(post.Pid, bob, "three", nil)
	require.NoError(t, err)

	comments, err := ListComments(post.Pid)
	require.NoError(t, err)
	require.Len(t, comments, 3)

	ids := make(map[uint]string, len(comments))
	for _, c := range comments {
		ids[c.ID] = c.ThreadID
	}
	for _, c := range comments {
		if c.ParentID == nil {
			continue
		}
		parentThread, ok := ids[*c.ParentID]
		require.True(t, ok, "parent must be present in the same result set")
		require.Equal(t, parentThread, c.ThreadID)
	}

	_, err = ListComments("missing0")
	require.ErrorIs(t, err, ErrPostNotFound)
}

func TestDeletePostCascadeKeepsWitnessedRelations(t *testing.T) {
	setupTestDB(t)
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	post1 := createTestPost(t, alice, "first")
	post2 := createTestPost(t, alice, "second")

	// A(bob) 在两个帖子下都回复了 B(alice) 的评论
	r1, err := CreateComment(post1.Pid, alice, "root1", nil)
	require.NoError(t, err)
	_, err = CreateComment(post1.Pid, bob, "reply1", &r1.Comment.ID)
	require.NoError(t, err)

	r2, err := CreateComment(post2.Pid, alice, "root2", nil)
	require.NoError(t, err)
	_, err = CreateComment(post2.Pid, bob, "reply2", &r2.Comment.ID)
	require.NoError(t, err)

	require.True(t, HasRepliedTo(bob.ID, alice.ID))

	// 删掉第一个帖子：第二个帖子仍然见证 bob→alice，关系必须保留
	deleted, err := DeletePostCascade(post1.Pid)
	require.NoError(t, err)
	require.Len(t, deleted, 2)
	require.True(t, HasRepliedTo(bob.ID, alice.ID))

	var remaining int64
	db.DB.Model(&models.Comment{}).Where("post_id = ?", post1.ID).Count(&remaining)
	require.Zero(t, remaining)

	// 删掉第二个帖子：最后的见证消失，关系随之清除
	deleted, err = DeletePostCascade(post2.Pid)
	require.NoError(t, err)
	require.Len(t, deleted, 2)
	require.False(t, HasRepliedTo(bob.ID, alice.ID))
}

func TestDeletePostCascadeIsIdempotent(t *testing.T) {
	setupTestDB(t)
	alice := createTestUser(t, "alice")
	post := createTestPost(t, alice, "gone")

	_, err := CreateComment(post.Pid, alice, "c", nil)
	require.NoError(t, err)

	deleted, err := DeletePostCascade(post.Pid)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	// 已删除的帖子再删一次：空操作，不报错
	deleted, err = DeletePostCascade(post.Pid)
	require.NoError(t, err)
	require.Empty(t, deleted)
}

func TestDeletePostCascadeRemovesNotificationsAndLikes(t *testing.T) {
	setupTestDB(t)
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	post := createTestPost(t, alice, "cleanup")

	_, err := CreateComment(post.Pid, bob, "c", nil)
	require.NoError(t, err)
	_, err = ToggleLike(post.Pid, bob)
	require.NoError(t, err)

	_, err = DeletePostCascade(post.Pid)
	require.NoError(t, err)

	var notifications, likes int64
	db.DB.Model(&models.Notification{}).Where("post_id = ?", post.ID).Count(&notifications)
	db.DB.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes)
	require.Zero(t, notifications)
	require.Zero(t, likes)
}
