package mongorepo

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskmanager/internal/db"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

type taskRepository struct {
	tasks *mongo.Collection
	users *mongo.Collection
}

// NewTaskRepository builds a MongoDB-backed task repository.
func NewTaskRepository(database *mongo.Database) repository.TaskRepository {
	return &taskRepository{
		tasks: database.Collection(db.TasksCollection),
		users: database.Collection(db.UsersCollection),
	}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	for i := range task.Notifications {
		stampNotification(&task.Notifications[i], task.ID, now)
	}
	for i := range task.AuditLog {
		stampAudit(&task.AuditLog[i], task.ID, now)
	}

	_, err := r.tasks.InsertOne(ctx, toTaskDoc(task))
	return translate(err)
}

// Update sets the task fields and pushes audit entries in a single document
// update, which MongoDB applies atomically.
func (r *taskRepository) Update(ctx context.Context, task *model.Task, audit []model.AuditEntry) error {
	now := time.Now().UTC()
	task.UpdatedAt = now

	entries := make([]auditDoc, 0, len(audit))
	for i := range audit {
		stampAudit(&audit[i], task.ID, now)
		entries = append(entries, toAuditDoc(&audit[i]))
	}

	update := bson.M{
		"$set": bson.M{
			"title":       task.Title,
			"description": task.Description,
			"due_date":    task.DueDate,
			"priority":    string(task.Priority),
			"status":      string(task.Status),
			"assigned_to": idString(task.AssignedTo),
			"recurrence": recurrenceDoc{
				IsRecurring: task.Recurrence.IsRecurring,
				Frequency:   string(task.Recurrence.Frequency),
				EndDate:     task.Recurrence.EndDate,
			},
			"updated_at": now,
		},
	}
	if len(entries) > 0 {
		update["$push"] = bson.M{"audit_log": bson.M{"$each": entries}}
	}

	res, err := r.tasks.UpdateOne(ctx, bson.M{"_id": task.ID.String()}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrRecordNotFound
	}
	task.AuditLog = append(task.AuditLog, audit...)
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.tasks.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return errors.ErrRecordNotFound
	}
	return nil
}

func (r *taskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var doc taskDoc
	if err := r.tasks.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	task := doc.toModel()
	return &task, nil
}

func (r *taskRepository) FindVisible(ctx context.Context, id uuid.UUID, scope model.TaskScope) (*model.Task, error) {
	scopeFilter, err := r.scopeFilter(ctx, scope)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"$and": bson.A{bson.M{"_id": id.String()}, scopeFilter}}

	var doc taskDoc
	if err := r.tasks.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	task := doc.toModel()
	return &task, nil
}

func (r *taskRepository) Find(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	scopeFilter, err := r.scopeFilter(ctx, filter.Scope)
	if err != nil {
		return nil, err
	}

	clauses := bson.A{scopeFilter}
	if filter.Search != "" {
		clauses = append(clauses, bson.M{"$text": bson.M{"$search": filter.Search}})
	}
	if filter.Status != nil {
		clauses = append(clauses, bson.M{"status": string(*filter.Status)})
	}
	if filter.Priority != nil {
		clauses = append(clauses, bson.M{"priority": string(*filter.Priority)})
	}
	if filter.DueFrom != nil {
		clauses = append(clauses, bson.M{"due_date": bson.M{"$gte": *filter.DueFrom}})
	}
	if filter.DueTo != nil {
		clauses = append(clauses, bson.M{"due_date": bson.M{"$lt": *filter.DueTo}})
	}
	if filter.AssignedTo != nil {
		clauses = append(clauses, bson.M{"assigned_to": filter.AssignedTo.String()})
	}
	if filter.CreatedBy != nil {
		clauses = append(clauses, bson.M{"created_by": filter.CreatedBy.String()})
	}
	if filter.OverdueOnly {
		clauses = append(clauses, bson.M{
			"status":   bson.M{"$ne": string(model.StatusCompleted)},
			"due_date": bson.M{"$lt": filter.Now},
		})
	}
	if filter.RecurringDue {
		clauses = append(clauses, bson.M{
			"recurrence.is_recurring": true,
			"recurrence.frequency":    bson.M{"$ne": string(model.FrequencyNone)},
			"successor_id":            nil,
			"due_date":                bson.M{"$lt": filter.Now},
		})
	}

	opts := options.Find()
	if filter.OrderByUpdated {
		opts.SetSort(bson.D{{Key: "updated_at", Value: -1}})
	} else {
		opts.SetSort(bson.D{{Key: "due_date", Value: 1}})
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.tasks.Find(ctx, bson.M{"$and": clauses}, opts)
	if err != nil {
		return nil, translate(err)
	}
	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	tasks := make([]model.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.toModel())
	}
	return tasks, nil
}

// AppendNotification pushes onto the task's embedded array.
func (r *taskRepository) AppendNotification(ctx context.Context, notification *model.Notification) error {
	stampNotification(notification, notification.TaskID, time.Now().UTC())
	res, err := r.tasks.UpdateOne(ctx,
		bson.M{"_id": notification.TaskID.String()},
		bson.M{"$push": bson.M{"notifications": toNotificationDoc(notification)}},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrRecordNotFound
	}
	return nil
}

func (r *taskRepository) FindNotification(ctx context.Context, taskID, notificationID uuid.UUID) (*model.Notification, error) {
	task, err := r.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	for i := range task.Notifications {
		if task.Notifications[i].ID == notificationID {
			return &task.Notifications[i], nil
		}
	}
	return nil, errors.ErrRecordNotFound
}

// MarkNotificationRead flips the read flag of one array element in place.
func (r *taskRepository) MarkNotificationRead(ctx context.Context, taskID, notificationID uuid.UUID) error {
	res, err := r.tasks.UpdateOne(ctx,
		bson.M{"_id": taskID.String(), "notifications._id": notificationID.String()},
		bson.M{"$set": bson.M{"notifications.$.read": true}},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrRecordNotFound
	}
	return nil
}

func (r *taskRepository) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]model.Notification, error) {
	cursor, err := r.tasks.Find(ctx, bson.M{"notifications.user_id": userID.String()},
		options.Find().SetProjection(bson.M{"notifications": 1}))
	if err != nil {
		return nil, translate(err)
	}
	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}

	out := []model.Notification{}
	for _, d := range docs {
		taskID := parseID(d.ID)
		for _, n := range d.Notifications {
			if n.UserID != userID.String() || (unreadOnly && n.Read) {
				continue
			}
			out = append(out, n.toModel(taskID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *taskRepository) ClaimSuccessor(ctx context.Context, taskID, successorID uuid.UUID) (bool, error) {
	res, err := r.tasks.UpdateOne(ctx,
		bson.M{"_id": taskID.String(), "successor_id": nil},
		bson.M{"$set": bson.M{"successor_id": successorID.String()}},
	)
	if err != nil {
		return false, translate(err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *taskRepository) ReleaseSuccessor(ctx context.Context, taskID, successorID uuid.UUID) error {
	_, err := r.tasks.UpdateOne(ctx,
		bson.M{"_id": taskID.String(), "successor_id": successorID.String()},
		bson.M{"$set": bson.M{"successor_id": nil}},
	)
	return translate(err)
}

func (r *taskRepository) scopeFilter(ctx context.Context, scope model.TaskScope) (bson.M, error) {
	me := scope.UserID.String()
	own := bson.A{bson.M{"created_by": me}, bson.M{"assigned_to": me}}

	switch scope.Kind {
	case model.ScopeAll:
		return bson.M{}, nil
	case model.ScopeTeam:
		reports, err := reportIDs(ctx, r.users, scope.UserID)
		if err != nil {
			return nil, err
		}
		if len(reports) > 0 {
			own = append(own, bson.M{"assigned_to": bson.M{"$in": reports}})
		}
		return bson.M{"$or": own}, nil
	case model.ScopeReports:
		reports, err := reportIDs(ctx, r.users, scope.UserID)
		if err != nil {
			return nil, err
		}
		// An empty $in matches nothing.
		return bson.M{"assigned_to": bson.M{"$in": reports}}, nil
	default:
		return bson.M{"$or": own}, nil
	}
}

func stampNotification(n *model.Notification, taskID uuid.UUID, now time.Time) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.TaskID = taskID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
}

func stampAudit(a *model.AuditEntry, taskID uuid.UUID, now time.Time) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.TaskID = taskID
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
}
